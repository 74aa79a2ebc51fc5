// Package session holds the state of the running simulation session that is
// attached to every log line.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const noCourse = "No course loaded"

// Context holds the current session and course. Readers may be on any
// goroutine.
type Context struct {
	mu      sync.RWMutex
	id      string
	started time.Time
	course  string
	runs    int
}

// NewContext creates a Context with a fresh session ID.
func NewContext() *Context {
	return &Context{
		id:      uuid.NewString(),
		started: time.Now().UTC(),
		course:  noCourse,
	}
}

// ID returns the session ID.
func (c *Context) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

// Started returns the session start time in UTC.
func (c *Context) Started() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.started
}

// Course returns the name of the active course.
func (c *Context) Course() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.course
}

// SetCourse records the active course.
func (c *Context) SetCourse(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.course = name
}

// RunRecorded increments the number of ghost runs finished in this session
// and returns the new count.
func (c *Context) RunRecorded() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs++
	return c.runs
}

// Runs returns the number of ghost runs finished in this session.
func (c *Context) Runs() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runs
}

// Attrs returns the log attributes describing the session.
func (c *Context) Attrs() []slog.Attr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return []slog.Attr{
		slog.String("session", c.id),
		slog.String("course", c.course),
	}
}
