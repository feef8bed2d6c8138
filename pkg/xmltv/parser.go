// Package xmltv provides streaming XMLTV guide parsing.
//
// Guide feeds are large and frequently served compressed; the parser works
// token-by-token with callbacks so documents never need to fit in memory,
// and ParseCompressed sniffs gzip/bzip2/xz magic bytes before decoding.
package xmltv

import (
	"bufio"
	"compress/gzip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dsnet/compress/bzip2"
	"github.com/ulikunitz/xz"
)

// Channel is a channel definition in a guide document.
type Channel struct {
	ID          string
	DisplayName string
	Icon        string
}

// Programme is a single airing. Times are normalized to UTC.
type Programme struct {
	Channel     string
	Start       time.Time
	Stop        time.Time
	Title       string
	Description string
	Category    string
}

// Parser provides streaming XMLTV parsing with callback-based processing.
// A callback error aborts the parse; recoverable element-level problems go
// to OnError and parsing continues.
type Parser struct {
	OnChannel   func(channel *Channel) error
	OnProgramme func(programme *Programme) error
	OnError     func(err error)
}

// timeFormats are the accepted timestamp layouts, tried in order.
var timeFormats = []string{
	"20060102150405 -0700",
	"20060102150405",
	"200601021504",
}

// ParseTime parses an XMLTV timestamp ("20240101120000 +0000") and
// normalizes it to UTC. Timestamps without an offset are taken as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time string")
	}
	for _, format := range timeFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse time: %q", s)
}

// FormatTime renders a time in canonical XMLTV form. It round-trips with
// ParseTime.
func FormatTime(t time.Time) string {
	return t.UTC().Format("20060102150405 -0700")
}

// Parse parses an XMLTV document from a reader.
func (p *Parser) Parse(r io.Reader) error {
	decoder := xml.NewDecoder(r)
	decoder.Strict = false
	decoder.AutoClose = xml.HTMLAutoClose
	decoder.Entity = xml.HTMLEntity

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading XML token: %w", err)
		}

		elem, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		switch elem.Name.Local {
		case "channel":
			if p.OnChannel == nil {
				_ = decoder.Skip()
				continue
			}
			channel, err := parseChannel(decoder, elem)
			if err != nil {
				p.handleError(err)
				continue
			}
			if err := p.OnChannel(channel); err != nil {
				return fmt.Errorf("channel callback: %w", err)
			}
		case "programme":
			if p.OnProgramme == nil {
				_ = decoder.Skip()
				continue
			}
			programme, err := parseProgramme(decoder, elem)
			if err != nil {
				p.handleError(err)
				continue
			}
			if err := p.OnProgramme(programme); err != nil {
				return fmt.Errorf("programme callback: %w", err)
			}
		}
	}
	return nil
}

// Compression magic bytes.
var (
	magicGzip  = []byte{0x1f, 0x8b}
	magicBzip2 = []byte{'B', 'Z', 'h'}
	magicXz    = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// ParseCompressed parses a possibly compressed XMLTV document, detecting
// the compression format from magic bytes.
func (p *Parser) ParseCompressed(r io.Reader) error {
	br := bufio.NewReader(r)
	header, err := br.Peek(6)
	if err != nil && err != io.EOF {
		return fmt.Errorf("peeking header: %w", err)
	}

	var reader io.Reader = br
	switch {
	case hasPrefix(header, magicGzip):
		gzr, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("creating gzip reader: %w", err)
		}
		defer gzr.Close()
		reader = gzr
	case hasPrefix(header, magicBzip2):
		bzr, err := bzip2.NewReader(br, nil)
		if err != nil {
			return fmt.Errorf("creating bzip2 reader: %w", err)
		}
		defer bzr.Close()
		reader = bzr
	case hasPrefix(header, magicXz):
		xzr, err := xz.NewReader(br)
		if err != nil {
			return fmt.Errorf("creating xz reader: %w", err)
		}
		reader = xzr
	}
	return p.Parse(reader)
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

func parseChannel(decoder *xml.Decoder, start xml.StartElement) (*Channel, error) {
	channel := &Channel{}
	for _, attr := range start.Attr {
		if attr.Name.Local == "id" {
			channel.ID = attr.Value
		}
	}

	for {
		token, err := decoder.Token()
		if err != nil {
			return nil, err
		}
		switch elem := token.(type) {
		case xml.StartElement:
			switch elem.Name.Local {
			case "display-name":
				var name string
				// First display-name wins; feeds list aliases after it.
				if err := decoder.DecodeElement(&name, &elem); err == nil && channel.DisplayName == "" {
					channel.DisplayName = strings.TrimSpace(name)
				}
			case "icon":
				for _, attr := range elem.Attr {
					if attr.Name.Local == "src" {
						channel.Icon = attr.Value
					}
				}
				_ = decoder.Skip()
			default:
				_ = decoder.Skip()
			}
		case xml.EndElement:
			if elem.Name.Local == "channel" {
				if channel.ID == "" {
					return nil, fmt.Errorf("channel without id attribute")
				}
				return channel, nil
			}
		}
	}
}

func parseProgramme(decoder *xml.Decoder, start xml.StartElement) (*Programme, error) {
	prog := &Programme{}
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "start":
			if t, err := ParseTime(attr.Value); err == nil {
				prog.Start = t
			}
		case "stop":
			if t, err := ParseTime(attr.Value); err == nil {
				prog.Stop = t
			}
		case "channel":
			prog.Channel = attr.Value
		}
	}

	for {
		token, err := decoder.Token()
		if err != nil {
			return nil, err
		}
		switch elem := token.(type) {
		case xml.StartElement:
			switch elem.Name.Local {
			case "title":
				var title string
				if err := decoder.DecodeElement(&title, &elem); err == nil && prog.Title == "" {
					prog.Title = strings.TrimSpace(title)
				}
			case "desc":
				var desc string
				if err := decoder.DecodeElement(&desc, &elem); err == nil && prog.Description == "" {
					prog.Description = strings.TrimSpace(desc)
				}
			case "category":
				var cat string
				if err := decoder.DecodeElement(&cat, &elem); err == nil && prog.Category == "" {
					prog.Category = strings.TrimSpace(cat)
				}
			default:
				_ = decoder.Skip()
			}
		case xml.EndElement:
			if elem.Name.Local == "programme" {
				if prog.Channel == "" {
					return nil, fmt.Errorf("programme without channel attribute")
				}
				if prog.Start.IsZero() {
					return nil, fmt.Errorf("programme without parseable start time")
				}
				return prog, nil
			}
		}
	}
}

func (p *Parser) handleError(err error) {
	if p.OnError != nil {
		p.OnError(err)
	}
}
