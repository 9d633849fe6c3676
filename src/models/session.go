package models

import "time"

// -----------------------------------------------------------------------------
// Menu levels
// -----------------------------------------------------------------------------

// MenuLevel is the menu a user is currently looking at
type MenuLevel int

const (
	LevelMain MenuLevel = iota
	LevelStockSearch
	LevelMarketInfo
	LevelPortfolio
	LevelAlertMonitor
	LevelHelp
)

func (l MenuLevel) String() string {
	switch l {
	case LevelMain:
		return "MAIN"
	case LevelStockSearch:
		return "STOCK_SEARCH"
	case LevelMarketInfo:
		return "MARKET_INFO"
	case LevelPortfolio:
		return "PORTFOLIO"
	case LevelAlertMonitor:
		return "ALERT_MONITOR"
	case LevelHelp:
		return "HELP"
	}
	return "UNKNOWN"
}

// -----------------------------------------------------------------------------
// Prompts
// -----------------------------------------------------------------------------

// Prompt is a sub-state inside a menu level. Every prompt type belongs to a
// single level, so a prompt can only ever be paired with its own level.
type Prompt interface {
	Level() MenuLevel
	String() string
	prompt()
}

// SearchPrompt is a STOCK_SEARCH sub-state
type SearchPrompt int

const (
	PromptAwaitKeyword SearchPrompt = iota + 1
	PromptAwaitCode
	PromptResultsReady
)

func (SearchPrompt) Level() MenuLevel { return LevelStockSearch }
func (SearchPrompt) prompt()          {}

func (p SearchPrompt) String() string {
	switch p {
	case PromptAwaitKeyword:
		return "WAIT_KEYWORD"
	case PromptAwaitCode:
		return "WAIT_CODE"
	case PromptResultsReady:
		return "SEARCH_RESULTS"
	}
	return "UNKNOWN"
}

// PortfolioPrompt is a PORTFOLIO sub-state
type PortfolioPrompt int

const (
	PromptAwaitAdd PortfolioPrompt = iota + 1
	PromptAwaitRemove
)

func (PortfolioPrompt) Level() MenuLevel { return LevelPortfolio }
func (PortfolioPrompt) prompt()          {}

func (p PortfolioPrompt) String() string {
	switch p {
	case PromptAwaitAdd:
		return "WAIT_ADD"
	case PromptAwaitRemove:
		return "WAIT_REMOVE"
	}
	return "UNKNOWN"
}

// AlertPrompt is an ALERT_MONITOR sub-state
type AlertPrompt int

const (
	PromptAwaitAlert AlertPrompt = iota + 1
	PromptAwaitMonitor
)

func (AlertPrompt) Level() MenuLevel { return LevelAlertMonitor }
func (AlertPrompt) prompt()          {}

func (p AlertPrompt) String() string {
	switch p {
	case PromptAwaitAlert:
		return "WAIT_ALERT"
	case PromptAwaitMonitor:
		return "WAIT_MONITOR"
	}
	return "UNKNOWN"
}

// -----------------------------------------------------------------------------
// State
// -----------------------------------------------------------------------------

// MState is a (level, prompt) pair. The zero value is MAIN with no prompt.
type MState struct {
	level  MenuLevel
	prompt Prompt
}

// AtLevel returns the top of a menu level, with no prompt active
func AtLevel(level MenuLevel) MState {
	return MState{level: level}
}

// AtPrompt returns the state for a prompt; the level comes from the prompt
func AtPrompt(p Prompt) MState {
	if p == nil {
		return MState{}
	}
	return MState{level: p.Level(), prompt: p}
}

func (s MState) Level() MenuLevel { return s.level }

// Prompt returns the active prompt, or nil at the top of a level
func (s MState) Prompt() Prompt { return s.prompt }

func (s MState) HasPrompt() bool { return s.prompt != nil }

func (s MState) String() string {
	if s.prompt == nil {
		return s.level.String()
	}
	return s.level.String() + "/" + s.prompt.String()
}

// -----------------------------------------------------------------------------

// MSession is what the session store keeps per user
type MSession struct {
	State       MState
	LastTouched time.Time
}
