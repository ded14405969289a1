package fetcher

import (
	"context"
	"encoding/xml"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// EachElement decodes every element with the given local name from r and
// passes it to fn. Non-UTF-8 documents are handled via a charset reader.
// Decoding stops at the first decode failure, context cancellation, or error
// returned by fn.
func EachElement[T any](ctx context.Context, r io.Reader, elementName string, fn func(T) error) error {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: unsupported xml charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "fetcher: xml decode cancelled")
		}

		tok, err := decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return eris.Wrap(err, "fetcher: read xml token")
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != elementName {
			continue
		}

		var item T
		if err := decoder.DecodeElement(&item, &se); err != nil {
			return eris.Wrap(err, "fetcher: decode xml element")
		}
		if err := fn(item); err != nil {
			return err
		}
	}
}
