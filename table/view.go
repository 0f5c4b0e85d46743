package table

import "listview/dom"

// Elements is a View over already resolved elements.
type Elements struct {
	Container *dom.Element
	Page      *dom.Element
	First     *dom.Element
	Prev      *dom.Element
	Next      *dom.Element
	Last      *dom.Element
}

func (e *Elements) TableContainer() *dom.Element { return e.Container }
func (e *Elements) PageInput() *dom.Element      { return e.Page }
func (e *Elements) FirstButton() *dom.Element    { return e.First }
func (e *Elements) PrevButton() *dom.Element     { return e.Prev }
func (e *Elements) NextButton() *dom.Element     { return e.Next }
func (e *Elements) LastButton() *dom.Element     { return e.Last }
