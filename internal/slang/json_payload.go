package slang

import (
	"errors"

	"github.com/xynqdb/xynq/internal/storage"
	"github.com/xynqdb/xynq/internal/xio"
)

var errJSONPayloadNotSupported = errors.New("Not supported")

// JSONPayloadHandler is the `!json[...]` (and bare `![...]`, its
// default tag) custom-data handler: it would deserialize an inline
// JSON object payload straight into a freshly created typed object.
// Grounded on
// original_source/source/main/json_payload_handler.{h,cc}, which
// ships this exact feature commented out behind a literal
// `return StrSpan{"Not supported"}` pending a JSON deserializer that
// was never wired up. A JSON deserializer is out of scope for this
// module (see DESIGN.md), so this port keeps the same stub rather
// than inventing one to fill the gap the original itself never filled.
type JSONPayloadHandler struct {
	Storage *storage.Storage
}

// NewJSONPayloadHandler binds a handler to the object store it would
// write newly-deserialized objects into.
func NewJSONPayloadHandler(s *storage.Storage) *JSONPayloadHandler {
	return &JSONPayloadHandler{Storage: s}
}

// ProcessPayload always fails; see the type doc comment.
func (h *JSONPayloadHandler) ProcessPayload(r *xio.Reader) error {
	return errJSONPayloadNotSupported
}
