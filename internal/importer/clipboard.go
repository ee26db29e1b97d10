package importer

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ParseClipboard は表計算ソフトからコピーされた内容を読み込む。
// HTMLの<table>を含む場合はその表を、そうでなければタブ区切りテキストとして解釈する。
func ParseClipboard(content string) ([]RawRecord, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrNoRows
	}

	var rows [][]string
	if strings.Contains(strings.ToLower(content), "<table") {
		var err error
		rows, err = parseHTMLTable(content)
		if err != nil {
			return nil, err
		}
	} else {
		rows = parseTSV(content)
	}

	records := recordsFromRows(rows, 1)
	if len(records) == 0 {
		return nil, ErrNoRows
	}
	return records, nil
}

func parseTSV(content string) [][]string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	var rows [][]string
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, strings.Split(line, "\t"))
	}
	return rows
}

// parseHTMLTable は最初の<table>の各行をセル文字列の列にする。
func parseHTMLTable(content string) ([][]string, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, err
	}
	table := findFirst(doc, atom.Table)
	if table == nil {
		return nil, ErrNoRows
	}

	var rows [][]string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Tr {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
					cells = append(cells, textContent(c))
				}
			}
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(table)
	return rows, nil
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

// textContent はノード以下のテキストを連結する。<br>は改行にする。
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
		case n.Type == html.ElementNode && n.DataAtom == atom.Br:
			b.WriteString("\n")
		case n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style):
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
