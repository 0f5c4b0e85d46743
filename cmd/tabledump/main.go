// Command tabledump posts form fields to a rows endpoint and prints the table
// the list view would render for the response.
//
//	tabledump [-page N] [-nav next] https://example.com/sugar/rows/ period=week
package main

import (
	"context"
	"flag"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"listview/ajax"
	"listview/dom"
	"listview/table"
	"listview/widget"
)

func main() {
	page := flag.Int("page", 1, "initial page number")
	nav := flag.String("nav", "", "pager button to press after loading: first, prev, next or last")
	caption := flag.String("caption", "en", "caption preset (en, ru) or format string")
	style := flag.String("style", "", "inline CSS for the table")
	timeout := flag.Duration("timeout", 15*time.Second, "request timeout")
	verbose := flag.Bool("v", false, "log requests")
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: tabledump [flags] ENDPOINT [name=value ...]")
		os.Exit(2)
	}
	endpoint := flag.Arg(0)

	logger := log.New(os.Stderr, "", log.LstdFlags)
	if !*verbose {
		logger.SetOutput(io.Discard)
	}

	doc, err := dom.ParseString(listPage(*page, flag.Args()[1:]))
	if err != nil {
		log.Fatal(err)
	}
	renderer, err := table.NewRenderer(table.Config{CaptionFormat: table.CaptionPreset(*caption), Style: *style})
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	loop := widget.NewLoop()
	failed := false
	ctrl, err := widget.New(ctx, doc, widget.Config{
		URL:      endpoint,
		Host:     &ajax.Host{Client: &http.Client{Timeout: *timeout}, Events: loop},
		Renderer: renderer,
		Notifier: widget.NotifierFunc(func(msg string) { failed = true; log.Print(msg) }),
		Logger:   logger,
		Trace: func(req *ajax.Request) {
			logger.Printf("%s %d %d bytes", req.ReadyState(), req.Status(), len(req.ResponseBody()))
		},
	})
	if err != nil {
		log.Fatal(err)
	}

	ctrl.OnLoad()
	if err := loop.RunUntilIdle(ctx); err != nil {
		log.Fatal(err)
	}
	if *nav != "" && !failed {
		if err := press(ctrl, *nav); err != nil {
			log.Fatal(err)
		}
		if err := loop.RunUntilIdle(ctx); err != nil {
			log.Fatal(err)
		}
	}
	if err := ctrl.Err(); err != nil {
		log.Fatal(err)
	}

	v := ctrl.View()
	fmt.Println(v.Container.InnerHTML())
	maxPage, _ := v.Page.Attr("max")
	fmt.Printf("page=%s max=%s first=%t prev=%t next=%t last=%t\n",
		v.Page.Value(), maxPage, !v.First.Disabled(), !v.Prev.Disabled(), !v.Next.Disabled(), !v.Last.Disabled())
}

func press(ctrl *widget.Controller, nav string) error {
	v := ctrl.View()
	switch nav {
	case "first":
		v.First.Click()
	case "prev":
		v.Prev.Click()
	case "next":
		v.Next.Click()
	case "last":
		v.Last.Click()
	default:
		return fmt.Errorf("unknown nav %q", nav)
	}
	return nil
}

// listPage builds a minimal list view document holding fields as hidden
// inputs.
func listPage(page int, fields []string) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><body><form id="list_view_form">`)
	for _, kv := range fields {
		name, value, _ := strings.Cut(kv, "=")
		fmt.Fprintf(&b, `<input type="hidden" name="%s" value="%s">`, html.EscapeString(name), html.EscapeString(value))
	}
	fmt.Fprintf(&b, `<button type="button" id="refresh"></button>
<button type="button" id="first_page"></button><button type="button" id="prev_page"></button>
<input type="number" id="id_page_number" name="page_number" value="%d">
<button type="button" id="next_page"></button><button type="button" id="last_page"></button>
</form><div id="list_view_table_div"></div></body></html>`, page)
	return b.String()
}
