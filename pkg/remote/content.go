package remote

import (
	"context"
	"io"
	"net/http"
)

// Upload streams r to the FileHandler service as the file name inside parent.
//
// The body is sent chunked; nothing is buffered beyond the transport's own
// write buffer, so a slow reader slows the upload and vice versa. Cancelling
// ctx aborts the request.
func (c *Client) Upload(ctx context.Context, token, parent, name string, r io.Reader) error {
	resp, err := c.do(ctx, call{
		service: serviceFileHandler,
		op:      "upload",
		method:  http.MethodPost,
		url:     c.fhURL + "/upload",
		token:   token,
		headers: map[string]string{
			HeaderParentPath:   parent,
			HeaderRelativePath: name,
		},
		body:   io.NopCloser(r),
		ctype:  "application/octet-stream",
		stream: true,
	})
	if err != nil {
		return err
	}
	drainAndClose(resp.Body)
	return nil
}

// Download opens the content of the file at path. The caller must close the
// returned stream; cancelling ctx aborts it.
func (c *Client) Download(ctx context.Context, token, path string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, call{
		service: serviceFileHandler,
		op:      "download",
		method:  http.MethodGet,
		url:     c.fhURL + "/download",
		token:   token,
		headers: map[string]string{HeaderPath: path},
		stream:  true,
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
