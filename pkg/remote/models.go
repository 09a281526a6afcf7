package remote

// User is an account known to the FileSystem service.
type User struct {
	ID         uint32 `json:"id"`
	Username   string `json:"username"`
	Privileges string `json:"privileges"`
}

// Inode is the FileSystem service's metadata record for a file or folder.
//
// MimeType is nil for folders.
type Inode struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Path          string  `json:"path"`
	Size          uint64  `json:"size"`
	MimeType      *string `json:"mimeType,omitempty"`
	LastUpdated   int64   `json:"lastUpdated"`
	LastUpdatedBy User    `json:"lastUpdatedBy"`
}

// IsDir reports whether the inode is a folder.
func (i *Inode) IsDir() bool {
	return i.MimeType == nil
}

// Contents is the listing of a folder together with the folder's owner.
type Contents struct {
	Inodes []Inode `json:"inodes"`
	Owner  User    `json:"owner"`
}

type folderCreationRequest struct {
	Name       string `json:"name"`
	ParentPath string `json:"parentPath"`
}

type renameRequest struct {
	Path    string `json:"path"`
	NewName string `json:"newName"`
}

type moveRequest struct {
	Path    string `json:"path"`
	NewPath string `json:"newPath"`
}

type timestampRequest struct {
	LastUpdated int64 `json:"lastUpdated"`
}

type errorResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}
