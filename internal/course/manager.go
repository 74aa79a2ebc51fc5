package course

import (
	"errors"
	"fmt"
	"log/slog"
)

var ErrNoCourses = errors.New("race needs at least one course")

// Manager runs a race over a fixed list of courses. A win shows a victory
// message for a while, then the next course is loaded. Everything is driven
// by Update on the simulation goroutine.
type Manager struct {
	courses         []*Course
	current         int
	victoryDuration float64
	logger          *slog.Logger

	message   string
	countdown float64
	showing   bool
	done      bool

	// OnLoadCourse fires when a course becomes active, including the first.
	OnLoadCourse func(c *Course)
	// OnVictory fires when a player wins the active course.
	OnVictory func(player int, message string)
}

func NewManager(courses []*Course, victoryDuration float64, logger *slog.Logger) (*Manager, error) {
	if len(courses) == 0 {
		return nil, fmt.Errorf("new race manager: %w", ErrNoCourses)
	}
	if victoryDuration < 0 {
		return nil, fmt.Errorf("new race manager: negative victory duration %v", victoryDuration)
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		courses:         courses,
		victoryDuration: victoryDuration,
		logger:          logger,
	}
	for _, c := range courses {
		c.OnWin = m.PlayerWon
	}
	return m, nil
}

// Start activates the first course.
func (m *Manager) Start() {
	m.current = 0
	m.showing = false
	m.done = false
	m.load()
}

// Current returns the active course.
func (m *Manager) Current() *Course { return m.courses[m.current] }

// CurrentIndex is the position of the active course in the race.
func (m *Manager) CurrentIndex() int { return m.current }

// Done reports whether the last course has been won.
func (m *Manager) Done() bool { return m.done }

// VictoryMessage returns the message being shown, if any.
func (m *Manager) VictoryMessage() (string, bool) {
	return m.message, m.showing
}

// Progress returns the player's progress on the active course, or -1 for an
// unknown player.
func (m *Manager) Progress(player int) int {
	return m.Current().Progress(player)
}

// PlayerWon clears progress on the active course and starts the victory
// countdown. Wins while a message is already showing are ignored.
func (m *Manager) PlayerWon(player int) {
	if m.showing || m.done {
		return
	}
	course := m.Current()
	course.Reset()

	m.message = fmt.Sprintf("Player %d Victory!", player+1)
	m.countdown = m.victoryDuration
	m.showing = true
	m.logger.Info("player won course", "player", player, "course", course.Name)

	if m.OnVictory != nil {
		m.OnVictory(player, m.message)
	}
}

// Update advances the victory countdown and loads the next course when it
// runs out.
func (m *Manager) Update(dt float64) {
	if !m.showing {
		return
	}
	m.countdown -= dt
	if m.countdown > 0 {
		return
	}
	m.showing = false
	m.message = ""

	if m.current+1 >= len(m.courses) {
		m.done = true
		m.logger.Info("race finished", "courses", len(m.courses))
		return
	}
	m.current++
	m.load()
}

func (m *Manager) load() {
	course := m.Current()
	course.Reset()
	m.logger.Info("loading course", "course", course.Name, "index", m.current)
	if m.OnLoadCourse != nil {
		m.OnLoadCourse(course)
	}
}
