// Package command turns operator requests into scheduling operations and
// renders the replies.
package command

import (
	"github.com/javiermolinar/airtime/internal/slot"
)

// Request is one operator command.
type Request interface {
	kind() string
}

// SelectPeriod prepares a month's grid and makes it the user's edit target.
type SelectPeriod struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// Reserve books slots on one day of the selected period.
type Reserve struct {
	Day     int          `json:"day"`
	Color   string       `json:"color"`
	Text    string       `json:"text"`
	Entries []slot.Entry `json:"entries"`
}

// Cancel clears slots on one day of the selected period.
type Cancel struct {
	Day     int          `json:"day"`
	Entries []slot.Entry `json:"entries"`
}

// ViewDay reports free slots of one day. With Year and Month both zero it
// reads the month the user last viewed.
type ViewDay struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// Reset forgets the user's session.
type Reset struct{}

func (SelectPeriod) kind() string { return "select" }
func (Reserve) kind() string      { return "reserve" }
func (Cancel) kind() string       { return "cancel" }
func (ViewDay) kind() string      { return "view" }
func (Reset) kind() string        { return "reset" }

// Reply is the result of a dispatched request.
type Reply struct {
	Text     string         `json:"report"`
	Outcomes []slot.Outcome `json:"outcomes,omitempty"`
}
