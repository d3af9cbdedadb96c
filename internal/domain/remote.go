package domain

import "time"

// RemoteFile describes a file visible in the remote drop folder, as
// returned by the remote source's listing operation. Read-only to this
// service.
type RemoteFile struct {
	Name     string
	Size     int64
	Modified time.Time
}
