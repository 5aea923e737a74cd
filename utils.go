package sendproxy

import (
	"math"

	"github.com/pkg/errors"
)

func validatePort(port int) error {
	if port < 0 || port > math.MaxUint16 {
		return errors.New("invalid port")
	}
	return nil
}

// formatUnixName fill a socket path into the fixed 108-byte field of the v2
// unix address block. names over the field size are truncated.
func formatUnixName(name string) []byte {
	buf := make([]byte, addressLengthUnix/2)
	copy(buf, name)
	return buf
}
