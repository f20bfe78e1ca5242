package workspace

import (
	"context"
	"io"

	"github.com/testcontainers/testcontainers-go"
)

// execInContainer runs cmd via a shell inside c and returns its exit
// code and captured output. testcontainers-go multiplexes stdout/stderr
// into a single reader for Exec; we surface it all as stdout, which is
// sufficient for the eval predicates' pass/fail decisions (exit code is
// authoritative) and for log capture.
func execInContainer(ctx context.Context, c testcontainers.Container, cmd string) (int, string, string, error) {
	code, reader, err := c.Exec(ctx, []string{"sh", "-c", cmd})
	if err != nil {
		return 0, "", "", err
	}
	var out []byte
	if reader != nil {
		out, err = io.ReadAll(reader)
		if err != nil {
			return 0, "", "", err
		}
	}
	return code, string(out), "", nil
}
