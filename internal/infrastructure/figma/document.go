package figma

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/ncastellanos/figma-qa/internal/core/domain"
)

type node struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Characters string `json:"characters,omitempty"`
	Children   []node `json:"children,omitempty"`
}

type fileResponse struct {
	Name     string `json:"name"`
	Document node   `json:"document"`
}

type nodesResponse struct {
	Nodes map[string]struct {
		Document node `json:"document"`
	} `json:"nodes"`
}

// ListFrames fetches the document skeleton, then pulls each page tree through
// the /nodes endpoint in batches and flattens every FRAME into a
// domain.Frame tagged with its page, enclosing section and group labels.
func (c *Client) ListFrames(ctx context.Context, token, fileKey string) ([]domain.Frame, error) {
	var file fileResponse
	if err := c.getJSON(ctx, token, "/files/"+fileKey, nil, &file, "get_file"); err != nil {
		return nil, mapFigmaError("figma.ListFrames", err)
	}

	type pageRef struct {
		id   string
		name string
	}
	var pages []pageRef
	for _, page := range file.Document.Children {
		if page.ID == "" {
			continue
		}
		name := page.Name
		if name == "" {
			name = "Untitled Page"
		}
		pages = append(pages, pageRef{id: page.ID, name: name})
	}
	if len(pages) == 0 {
		return nil, nil
	}

	pageIDs := make([]string, 0, len(pages))
	for _, p := range pages {
		pageIDs = append(pageIDs, p.id)
	}

	trees := make(map[string]node, len(pages))
	for _, batch := range chunked(pageIDs, c.nodesPerCall) {
		params := url.Values{"ids": {strings.Join(batch, ",")}}
		var resp nodesResponse
		if err := c.getJSON(ctx, token, "/files/"+fileKey+"/nodes", params, &resp, "get_nodes"); err != nil {
			return nil, mapFigmaError("figma.ListFrames", err)
		}
		for id, entry := range resp.Nodes {
			trees[id] = entry.Document
		}
	}

	var frames []domain.Frame
	order := 0
	for _, p := range pages {
		tree, ok := trees[p.id]
		if !ok {
			slog.Warn("figma_page_missing_from_nodes", "page_id", p.id, "page_name", p.name)
			continue
		}
		collectFrames(tree, p.id, p.name, frameContext{}, &frames, &order)
	}

	slog.Info("figma_frames_listed", "file_key", fileKey, "pages", len(pages), "frames", len(frames))
	return frames, nil
}

type frameContext struct {
	section string
	groups  []string
}

func collectFrames(n node, pageID, pageName string, parent frameContext, acc *[]domain.Frame, order *int) {
	ctx := parent
	switch n.Type {
	case "SECTION":
		name := n.Name
		if name == "" {
			name = "Section"
		}
		ctx.section = name
	case "GROUP", "COMPONENT_SET":
		if n.Name != "" {
			groups := make([]string, len(parent.groups), len(parent.groups)+1)
			copy(groups, parent.groups)
			ctx.groups = append(groups, n.Name)
		}
	case "FRAME":
		name := n.Name
		if name == "" {
			name = "Untitled Frame"
		}
		texts, elements := summarizeFrame(n)
		*acc = append(*acc, domain.Frame{
			NodeID:      n.ID,
			Name:        name,
			PageID:      pageID,
			PageName:    pageName,
			SectionName: ctx.section,
			GroupLabels: ctx.groups,
			Texts:       texts,
			Elements:    elements,
			Order:       *order,
		})
		*order++
	}

	for _, child := range n.Children {
		collectFrames(child, pageID, pageName, ctx, acc, order)
	}
}

// controlKeywords mark instance names that behave like interactive controls.
var controlKeywords = []string{
	"button", "input", "textfield", "select", "dropdown", "checkbox",
	"radio", "switch", "tab", "accordion", "modal", "dialog", "toast",
	"tooltip", "link",
}

// summarizeFrame flattens the visible text of a frame subtree and detects
// components and named groups for the model prompt.
func summarizeFrame(frame node) ([]string, []domain.Element) {
	var texts []string
	seen := make(map[string]struct{})
	var elements []domain.Element

	var walk func(n node)
	walk = func(n node) {
		switch n.Type {
		case "TEXT":
			chars := strings.TrimSpace(n.Characters)
			if chars != "" {
				if _, dup := seen[chars]; !dup {
					seen[chars] = struct{}{}
					texts = append(texts, chars)
				}
			}
		case "INSTANCE", "COMPONENT", "COMPONENT_SET":
			lower := strings.ToLower(n.Name)
			for _, kw := range controlKeywords {
				if strings.Contains(lower, kw) {
					elements = append(elements, domain.Element{Type: kw, Name: n.Name})
					break
				}
			}
			if n.Name != "" {
				elements = append(elements, domain.Element{Type: "component", Name: n.Name})
			}
		case "GROUP", "SECTION":
			if n.Name != "" {
				elements = append(elements, domain.Element{Type: "group", Name: n.Name})
			}
		}
		for _, child := range n.Children {
			walk(child)
		}
	}

	for _, child := range frame.Children {
		walk(child)
	}
	return texts, elements
}
