// Command docgen scans the API handlers for @Title/@Route/@Description/
// @Response comments and writes an AsciiDoc reference that the docs service
// renders at /api/docs?name=api.adoc.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

type Endpoint struct {
	Title       string
	Route       string
	Description string
	Response    string
}

var (
	reTitle = regexp.MustCompile(`// @Title: (.*)`)
	reRoute = regexp.MustCompile(`// @Route: (.*)`)
	reDesc  = regexp.MustCompile(`// @Description: (.*)`)
	reResp  = regexp.MustCompile(`// @Response: (.*)`)
)

func main() {
	apiDir := flag.String("api", "internal/api", "directory holding the API handlers")
	out := flag.String("out", "internal/docs/api.adoc", "output AsciiDoc file")
	flag.Parse()

	endpoints, err := scanDir(*apiDir)
	if err != nil {
		log.Fatalf("docgen: %v", err)
	}

	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("docgen: %v", err)
	}
	defer f.Close()

	if err := writeAsciiDoc(f, endpoints); err != nil {
		log.Fatalf("docgen: %v", err)
	}
	fmt.Printf("Generated %s (%d endpoints)\n", *out, len(endpoints))
}

func scanDir(dir string) ([]Endpoint, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var endpoints []Endpoint
	for _, file := range files {
		name := file.Name()
		if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		eps, err := scanFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, eps...)
	}

	sort.SliceStable(endpoints, func(i, j int) bool {
		return routePath(endpoints[i].Route) < routePath(endpoints[j].Route)
	})
	return endpoints, nil
}

func scanFile(path string) ([]Endpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var (
		endpoints []Endpoint
		current   Endpoint
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()

		if match := reTitle.FindStringSubmatch(line); len(match) > 1 {
			current.Title = strings.TrimSpace(match[1])
		}
		if match := reRoute.FindStringSubmatch(line); len(match) > 1 {
			current.Route = strings.TrimSpace(match[1])
		}
		if match := reDesc.FindStringSubmatch(line); len(match) > 1 {
			current.Description = strings.TrimSpace(match[1])
		}
		if match := reResp.FindStringSubmatch(line); len(match) > 1 {
			current.Response = strings.TrimSpace(match[1])
			// End of block, append and reset
			if current.Title != "" && current.Route != "" {
				endpoints = append(endpoints, current)
			}
			current = Endpoint{}
		}
	}
	return endpoints, scanner.Err()
}

func routePath(route string) string {
	if _, path, ok := strings.Cut(route, " "); ok {
		return path
	}
	return route
}

func writeAsciiDoc(w io.Writer, endpoints []Endpoint) error {
	var b strings.Builder
	b.WriteString("= xyn HTTP API\n:toc: left\n\n")
	b.WriteString("Generated by `go run ./cmd/docgen`. Do not edit by hand.\n\n")
	b.WriteString("Every response carries an `X-Request-ID` header. Status tags: `PIP` success, `PIP PIP` idle or rejected, `PIP PIP PIP` internal fault.\n")

	for _, ep := range endpoints {
		fmt.Fprintf(&b, "\n== %s\n\n", ep.Title)
		fmt.Fprintf(&b, "`%s`\n\n", ep.Route)
		if ep.Description != "" {
			fmt.Fprintf(&b, "%s\n\n", ep.Description)
		}
		fmt.Fprintf(&b, "Response::\n+\n----\n%s\n----\n", ep.Response)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
