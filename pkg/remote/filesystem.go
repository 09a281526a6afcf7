package remote

import (
	"context"
	"net/http"
	"time"
)

// GetInode fetches the inode at path.
func (c *Client) GetInode(ctx context.Context, token, path string) (*Inode, error) {
	var inode Inode
	err := c.doJSON(ctx, call{
		service: serviceFileSystem,
		op:      "get_inode",
		method:  http.MethodGet,
		url:     c.fsURL + "/filesystem/info",
		token:   token,
		headers: map[string]string{HeaderPath: path},
	}, &inode)
	if err != nil {
		return nil, err
	}
	return &inode, nil
}

// Contents lists the folder at path.
func (c *Client) Contents(ctx context.Context, token, path string) (*Contents, error) {
	var contents Contents
	err := c.doJSON(ctx, call{
		service: serviceFileSystem,
		op:      "contents",
		method:  http.MethodGet,
		url:     c.fsURL + "/filesystem/contents",
		token:   token,
		headers: map[string]string{HeaderPath: path},
	}, &contents)
	if err != nil {
		return nil, err
	}
	return &contents, nil
}

// CreateFolder creates a folder called name inside parent.
func (c *Client) CreateFolder(ctx context.Context, token, parent, name string) (*Inode, error) {
	const op = "create_folder"

	body, err := jsonBody(op, folderCreationRequest{Name: name, ParentPath: parent})
	if err != nil {
		return nil, err
	}

	var inode Inode
	err = c.doJSON(ctx, call{
		service: serviceFileSystem,
		op:      op,
		method:  http.MethodPost,
		url:     c.fsURL + "/filesystem/folder/create",
		token:   token,
		body:    body,
		ctype:   "application/json",
	}, &inode)
	if err != nil {
		return nil, err
	}
	return &inode, nil
}

// Rename gives the inode at path a new name within its folder. The returned
// inode carries the path the service actually assigned.
func (c *Client) Rename(ctx context.Context, token, path, newName string) (*Inode, error) {
	const op = "rename"

	body, err := jsonBody(op, renameRequest{Path: path, NewName: newName})
	if err != nil {
		return nil, err
	}

	var inode Inode
	err = c.doJSON(ctx, call{
		service: serviceFileSystem,
		op:      op,
		method:  http.MethodPut,
		url:     c.fsURL + "/filesystem/rename",
		token:   token,
		body:    body,
		ctype:   "application/json",
	}, &inode)
	if err != nil {
		return nil, err
	}
	return &inode, nil
}

// Move relocates the inode at path into the folder newPath.
func (c *Client) Move(ctx context.Context, token, path, newPath string) (*Inode, error) {
	const op = "move"

	body, err := jsonBody(op, moveRequest{Path: path, NewPath: newPath})
	if err != nil {
		return nil, err
	}

	var inode Inode
	err = c.doJSON(ctx, call{
		service: serviceFileSystem,
		op:      op,
		method:  http.MethodPut,
		url:     c.fsURL + "/filesystem/move",
		token:   token,
		body:    body,
		ctype:   "application/json",
	}, &inode)
	if err != nil {
		return nil, err
	}
	return &inode, nil
}

// Delete removes the inode at path. Folders are removed with their contents.
func (c *Client) Delete(ctx context.Context, token, path string) error {
	resp, err := c.do(ctx, call{
		service: serviceFileSystem,
		op:      "delete",
		method:  http.MethodDelete,
		url:     c.fsURL + "/filesystem/delete",
		token:   token,
		headers: map[string]string{HeaderPath: path},
	})
	if err != nil {
		return err
	}
	drainAndClose(resp.Body)
	return nil
}

// SetLastModified overrides the modification time of the inode at path.
func (c *Client) SetLastModified(ctx context.Context, token, path string, modified time.Time) (*Inode, error) {
	const op = "set_last_modified"

	body, err := jsonBody(op, timestampRequest{LastUpdated: modified.Unix()})
	if err != nil {
		return nil, err
	}

	var inode Inode
	err = c.doJSON(ctx, call{
		service: serviceFileSystem,
		op:      op,
		method:  http.MethodPut,
		url:     c.fsURL + "/filesystem/timestamp",
		token:   token,
		headers: map[string]string{HeaderPath: path},
		body:    body,
		ctype:   "application/json",
	}, &inode)
	if err != nil {
		return nil, err
	}
	return &inode, nil
}
