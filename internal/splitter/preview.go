package splitter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/hass-tools/freely-split/internal/constants"
	"github.com/hass-tools/freely-split/internal/guide"
)

// Preview prints the beginning of the compacted payload of resp to w, instead of writing anything.
func Preview(w io.Writer, resp guide.Response) error {
	var buf bytes.Buffer
	if err := json.Compact(&buf, resp.Data); err != nil {
		return fmt.Errorf("%w: %v", guide.ErrInvalidPayload, err)
	}

	data := buf.Bytes()
	if n := constants.DryRunPreviewSize; len(data) > n {
		// Cut before a character start.
		for n > 0 && !utf8.RuneStart(data[n]) {
			n--
		}
		data = data[:n]
	}

	if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
		return fmt.Errorf("could not print preview: %v", err)
	}
	return nil
}
