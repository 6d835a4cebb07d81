// Package alist implements the AList JSON/HTTP API surface used by the
// mirror: rate-limited listing, file info lookup and raw content download.
package alist

import (
	"encoding/json"
	"strings"
)

// listRequest is the shared body shape of /api/fs/list and /api/fs/get.
type listRequest struct {
	Path     string `json:"path"`
	Password string `json:"password"`
	Page     int    `json:"page"`
	PerPage  int    `json:"per_page"`
	Refresh  bool   `json:"refresh"`
}

func newListRequest(path string) listRequest {
	return listRequest{Path: path, Password: "", Page: 1, PerPage: 0, Refresh: false}
}

// HashAlgo identifies the digest a remote hash was computed with.
type HashAlgo string

const (
	HashNone HashAlgo = ""
	HashSHA1 HashAlgo = "sha1"
	HashMD5  HashAlgo = "md5"
)

// HashInfo carries the remote content hash. The wire form is an object with
// either a "sha1" or an "md5" key; the accessors make the variant explicit.
type HashInfo struct {
	SHA1 string `json:"sha1,omitempty"`
	MD5  string `json:"md5,omitempty"`
}

// Algo returns which digest this hash carries.
func (h *HashInfo) Algo() HashAlgo {
	switch {
	case h == nil:
		return HashNone
	case h.SHA1 != "":
		return HashSHA1
	case h.MD5 != "":
		return HashMD5
	default:
		return HashNone
	}
}

// Sum returns the hash value in lowercase hex for comparison.
func (h *HashInfo) Sum() string {
	switch h.Algo() {
	case HashSHA1:
		return strings.ToLower(h.SHA1)
	case HashMD5:
		return strings.ToLower(h.MD5)
	default:
		return ""
	}
}

// Entry is one row of a directory listing. Immutable snapshot.
type Entry struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	IsDir    bool      `json:"is_dir"`
	Modified string    `json:"modified"`
	Sign     string    `json:"sign"`
	Thumb    string    `json:"thumb"`
	Type     int       `json:"type"`
	Created  string    `json:"created,omitempty"`
	HashInfo *HashInfo `json:"hash_info"`
}

// Ext returns the lowercase extension of the entry name, without the dot.
func (e *Entry) Ext() string {
	if i := strings.LastIndexByte(e.Name, '.'); i >= 0 {
		return strings.ToLower(e.Name[i+1:])
	}
	return ""
}

// Listing is the decoded data of /api/fs/list. A nil Content means the
// directory is empty, not that the call failed.
type Listing struct {
	Content  []Entry `json:"content"`
	Total    int     `json:"total"`
	Readme   string  `json:"readme"`
	Write    bool    `json:"write"`
	Provider string  `json:"provider"`
	Header   string  `json:"header"`
}

// FileInfo is the decoded data of /api/fs/get. RawURL is short-lived and is
// fetched on demand rather than stored with crawl results.
type FileInfo struct {
	Entry
	RawURL   string `json:"raw_url"`
	Readme   string `json:"readme"`
	Header   string `json:"header"`
	Provider string `json:"provider"`
}

// envelope is the standard AList response wrapper. Code 200 means success;
// anything else is an application-level failure carrying Message.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}
