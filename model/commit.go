// Package model holds the data types shared by the patch, gerrit, and runner
// packages.
package model

import (
	"strings"
	"time"
)

type Commit struct {
	ID             string `json:"commit"`
	Author         string
	AuthorEmail    string
	AuthorDate     time.Time
	Committer      string
	CommitterEmail string
	CommitterDate  time.Time
	Subject        string
	Body           string
}

func (c *Commit) ShortID() string {
	if len(c.ID) < 8 {
		return c.ID
	}
	return c.ID[:8]
}

// Message returns the full commit message: the subject line, and the body
// separated from it by a blank line when one exists.
func (c *Commit) Message() string {
	if c.Body == "" {
		return c.Subject
	}
	return c.Subject + "\n\n" + c.Body
}

// BodyLines splits the message body for line-oriented rendering. A commit
// with no body has no lines.
func (c *Commit) BodyLines() []string {
	if c.Body == "" {
		return nil
	}
	return strings.Split(c.Body, "\n")
}
