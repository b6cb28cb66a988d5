package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html"

	"mcqsolver/internal/discovery"
	"mcqsolver/internal/dom"
	"mcqsolver/internal/relay"
	"mcqsolver/mcq"
)

func main() {
	selector := flag.String("selector", mcq.DefaultSelector, "selector tried before heuristic detection")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: mcqdetect [-selector S] <url|file>")
		os.Exit(2)
	}
	src := flag.Arg(0)

	doc, err := load(src)
	if err != nil {
		log.Fatal(err)
	}
	res, err := discovery.New(nil).Discover(doc, *selector)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("selector=%s auto=%v questions=%d\n", res.Selector, res.AutoDetected, len(res.Questions))
	for _, q := range res.Questions {
		text := dom.Abbrev(dom.CollectText(q.Node), 70)
		fmt.Printf("%3d <%s class=%q> group=%q options=%d %q\n",
			q.Ordinal, q.Node.Data, dom.GetAttr(q.Node, "class"), q.GroupKey, len(q.Options), text)
	}
}

func load(src string) (*html.Node, error) {
	var r io.Reader
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		log.Printf("fetch %s", src)
		resp, err := resty.New().
			SetHeader("User-Agent", relay.DefaultUserAgent).
			SetHeader("Accept", "text/html,application/xhtml+xml").
			R().Get(src)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("fetch %s: status %d", src, resp.StatusCode())
		}
		r = strings.NewReader(resp.String())
	} else {
		f, err := os.Open(src)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return html.Parse(r)
}
