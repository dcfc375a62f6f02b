package format

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"net/url"
	"strings"
)

// XMLHandler specializes the generic XML format for one document family,
// claimed by root-element namespace or DTD public identifier.
type XMLHandler interface {
	Name() string
	MediaType() string
	Extension() string
	Claim(root xml.Name, publicID string) bool
}

// Document is the parsed value of an XML match: declaration attributes, the
// root element, harvested namespaces and the handler that claimed it, if any.
type Document struct {
	Version    string
	Encoding   string
	Standalone string
	Root       xml.Name
	PublicID   string
	SystemID   string
	Namespaces map[string]string
	Handler    XMLHandler
}

// RefineMatch narrows the match identity to the claiming handler, or to a
// synthetic namespace-derived media type for unclaimed namespaced documents.
func (d *Document) RefineMatch() (string, string, bool) {
	if d.Handler != nil {
		return d.Handler.MediaType(), d.Handler.Extension(), true
	}
	if d.Root.Space != "" {
		return SyntheticMediaType(d.Root.Space, d.Root.Local), "xml", true
	}
	return "", "", false
}

// SyntheticMediaType derives a media type for an XML vocabulary that has no
// registered handler: application/x.ns.<reversed.host.path>.<root>+xml.
func SyntheticMediaType(nsURI, root string) string {
	var parts []string
	if u, err := url.Parse(nsURI); err == nil && u.Host != "" {
		labels := strings.Split(u.Host, ".")
		for i, j := 0, len(labels)-1; i < j; i, j = i+1, j-1 {
			labels[i], labels[j] = labels[j], labels[i]
		}
		parts = append(parts, labels...)
		for _, seg := range strings.Split(u.Path, "/") {
			if seg != "" {
				parts = append(parts, seg)
			}
		}
	} else {
		parts = append(parts, sanitizeToken(nsURI))
	}
	parts = append(parts, root)
	for i, p := range parts {
		parts[i] = sanitizeToken(p)
	}
	return "application/x.ns." + strings.Join(parts, ".") + "+xml"
}

func sanitizeToken(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

// XML is the generic XML format. It has no fixed byte signature (documents
// may start with a BOM or whitespace before the declaration) and claims any
// textual head whose first significant byte opens a tag.
type XML struct {
	Handlers []XMLHandler
}

func (f *XML) Name() string      { return "xml" }
func (f *XML) MediaType() string { return "application/xml" }
func (f *XML) Extension() string { return "xml" }
func (f *XML) Signature() []byte { return nil }
func (f *XML) BinaryOnly() bool  { return false }

func (f *XML) CheckHeader(h Header) bool {
	if h.Binary {
		return false
	}
	head := bytes.TrimLeft(h.Bytes, " \t\r\n\xef\xbb\xbf")
	return bytes.HasPrefix(head, []byte("<"))
}

func (f *XML) Match(ctx context.Context, r io.Reader, mc *MatchContext) (any, error) {
	dec := xml.NewDecoder(r)
	doc := &Document{Namespaces: map[string]string{}}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := dec.Token()
		if err != nil {
			// Not well-formed XML up to the root element: no claim.
			return nil, nil
		}
		switch t := tok.(type) {
		case xml.ProcInst:
			if t.Target == "xml" {
				doc.Version = pseudoAttr(t.Inst, "version")
				doc.Encoding = pseudoAttr(t.Inst, "encoding")
				doc.Standalone = pseudoAttr(t.Inst, "standalone")
			}
		case xml.Directive:
			doc.PublicID, doc.SystemID = doctypeIDs(t)
		case xml.StartElement:
			doc.Root = t.Name
			for _, a := range t.Attr {
				switch {
				case a.Name.Space == "xmlns":
					doc.Namespaces[a.Name.Local] = a.Value
				case a.Name.Space == "" && a.Name.Local == "xmlns":
					doc.Namespaces[""] = a.Value
				}
			}
			if mc.Namespaces != nil {
				for p, u := range doc.Namespaces {
					mc.Namespaces[p] = u
				}
			}
			for _, h := range f.Handlers {
				if h.Claim(doc.Root, doc.PublicID) {
					doc.Handler = h
					break
				}
			}
			return doc, nil
		}
	}
}

func pseudoAttr(inst []byte, name string) string {
	s := string(inst)
	idx := strings.Index(s, name+"=")
	if idx < 0 {
		return ""
	}
	rest := s[idx+len(name)+1:]
	if len(rest) < 2 {
		return ""
	}
	quote := rest[0]
	if quote != '"' && quote != '\'' {
		return ""
	}
	end := strings.IndexByte(rest[1:], quote)
	if end < 0 {
		return ""
	}
	return rest[1 : 1+end]
}

// doctypeIDs extracts PUBLIC and SYSTEM identifiers from a DOCTYPE directive.
func doctypeIDs(d xml.Directive) (publicID, systemID string) {
	s := string(d)
	if !strings.HasPrefix(s, "DOCTYPE") {
		return "", ""
	}
	if idx := strings.Index(s, "PUBLIC"); idx >= 0 {
		ids := quotedStrings(s[idx+len("PUBLIC"):])
		if len(ids) > 0 {
			publicID = ids[0]
		}
		if len(ids) > 1 {
			systemID = ids[1]
		}
		return publicID, systemID
	}
	if idx := strings.Index(s, "SYSTEM"); idx >= 0 {
		ids := quotedStrings(s[idx+len("SYSTEM"):])
		if len(ids) > 0 {
			systemID = ids[0]
		}
	}
	return publicID, systemID
}

func quotedStrings(s string) []string {
	var out []string
	for {
		start := strings.IndexAny(s, `"'`)
		if start < 0 {
			return out
		}
		quote := s[start]
		end := strings.IndexByte(s[start+1:], quote)
		if end < 0 {
			return out
		}
		out = append(out, s[start+1:start+1+end])
		s = s[start+2+end:]
	}
}

// SVGHandler claims documents rooted in the SVG namespace.
type SVGHandler struct{}

func (SVGHandler) Name() string      { return "svg" }
func (SVGHandler) MediaType() string { return "image/svg+xml" }
func (SVGHandler) Extension() string { return "svg" }

func (SVGHandler) Claim(root xml.Name, publicID string) bool {
	return root.Space == "http://www.w3.org/2000/svg" ||
		strings.HasPrefix(publicID, "-//W3C//DTD SVG")
}

// XHTMLHandler claims XHTML documents by namespace or DTD public id.
type XHTMLHandler struct{}

func (XHTMLHandler) Name() string      { return "xhtml" }
func (XHTMLHandler) MediaType() string { return "application/xhtml+xml" }
func (XHTMLHandler) Extension() string { return "xhtml" }

func (XHTMLHandler) Claim(root xml.Name, publicID string) bool {
	return root.Space == "http://www.w3.org/1999/xhtml" ||
		strings.HasPrefix(publicID, "-//W3C//DTD XHTML")
}
