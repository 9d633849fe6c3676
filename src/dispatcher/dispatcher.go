package dispatcher

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"stock-chatbot/src/interfaces"
	"stock-chatbot/src/logger"
	"stock-chatbot/src/models"
	"stock-chatbot/src/portfolio"
	"stock-chatbot/src/subscription"
	"stock-chatbot/src/utils"
)

var (
	digitsPattern = regexp.MustCompile(`^\d+$`)
	codePattern   = regexp.MustCompile(`^\d{6}$`)
)

// -----------------------------------------------------------------------------
// Collaborators
// -----------------------------------------------------------------------------

// Diagnostics backs the privileged /test and /quicktest commands
type Diagnostics interface {
	Run(ctx context.Context) string
	Quick(ctx context.Context) string
}

// TaskRunner starts a /cli command in the background and returns its task id
type TaskRunner interface {
	Start(userID int64, command string) (string, error)
}

// -----------------------------------------------------------------------------

// Dispatcher turns one inbound text into one response string. It never sends
// anything itself; callers deliver the response.
type Dispatcher struct {
	Config      *models.MConfig
	Sessions    interfaces.ISessionStore
	Cache       interfaces.IResultCache
	Quotes      interfaces.IMarketDataProvider
	Portfolio   *portfolio.Portfolio
	Alerts      *subscription.AlertRegistry
	Monitors    *subscription.MonitorRegistry
	Market      *utils.MarketScheduler
	Diagnostics Diagnostics
	Tasks       TaskRunner
	Logger      *logger.Logger

	fetchTimeout time.Duration
}

// -----------------------------------------------------------------------------

func NewDispatcher(
	cfg *models.MConfig,
	sessions interfaces.ISessionStore,
	cache interfaces.IResultCache,
	quotes interfaces.IMarketDataProvider,
	pf *portfolio.Portfolio,
	alerts *subscription.AlertRegistry,
	monitors *subscription.MonitorRegistry,
	log *logger.Logger,
) *Dispatcher {
	timeout := time.Duration(cfg.Quote.FetchTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		Config:       cfg,
		Sessions:     sessions,
		Cache:        cache,
		Quotes:       quotes,
		Portfolio:    pf,
		Alerts:       alerts,
		Monitors:     monitors,
		Logger:       log,
		fetchTimeout: timeout,
	}
}

// -----------------------------------------------------------------------------

// Dispatch routes text for userID. A zero userID means the sender has no
// identity; per-user commands then answer with the unknown-command text.
func (d *Dispatcher) Dispatch(ctx context.Context, userID int64, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return unknownText
	}

	if reply, ok := d.global(ctx, userID, text); ok {
		return reply
	}
	if reply, ok := d.prefixed(ctx, userID, text); ok {
		return reply
	}
	if userID != 0 {
		if sess, live := d.Sessions.Lookup(userID); live {
			if reply, ok := d.inSession(ctx, userID, sess.State, text); ok {
				return reply
			}
		}
	}
	if digitsPattern.MatchString(text) {
		return d.selectResult(ctx, userID, text)
	}

	d.Logger.Debug("Unmatched input from %d: %q", userID, text)
	return unknownText
}

// -----------------------------------------------------------------------------
// Step 1: exact commands
// -----------------------------------------------------------------------------

func (d *Dispatcher) global(ctx context.Context, userID int64, text string) (string, bool) {
	switch text {
	case "/start":
		if userID != 0 {
			d.Sessions.Set(userID, models.AtLevel(models.LevelMain))
		}
		return mainMenuText, true
	case "/help":
		return helpText, true
	case "/list":
		return d.stockList(), true
	case "/market", "/지수":
		return d.marketIndex(ctx), true
	case "/popular", "/인기":
		return d.popular(ctx), true
	case "/portfolio", "/mystock":
		if userID == 0 {
			return unknownText, true
		}
		return d.Portfolio.View(userID), true
	case "/stop":
		if userID == 0 {
			return unknownText, true
		}
		return d.stop(userID), true
	case "/unalert":
		if userID == 0 {
			return unknownText, true
		}
		_, reply := d.Alerts.Unsubscribe(userID)
		return reply, true
	case "/status", "/mystatus":
		if userID == 0 {
			return unknownText, true
		}
		return d.status(userID), true
	case "/test":
		if !d.privileged(ctx, userID) || d.Diagnostics == nil {
			return refusalText, true
		}
		return d.Diagnostics.Run(ctx), true
	case "/quicktest":
		if !d.privileged(ctx, userID) || d.Diagnostics == nil {
			return refusalText, true
		}
		return d.Diagnostics.Quick(ctx), true
	}
	return "", false
}

type unprivilegedKey struct{}

// WithoutPrivilege marks ctx as coming from a transport that cannot prove the
// sender's identity. Privileged commands are refused for such calls whatever
// user id they carry.
func WithoutPrivilege(ctx context.Context) context.Context {
	return context.WithValue(ctx, unprivilegedKey{}, true)
}

func (d *Dispatcher) privileged(ctx context.Context, userID int64) bool {
	if denied, _ := ctx.Value(unprivilegedKey{}).(bool); denied {
		return false
	}
	return userID != 0 && userID == d.Config.PrivilegedUserID
}

// -----------------------------------------------------------------------------
// Step 2: commands with a payload
// -----------------------------------------------------------------------------

func (d *Dispatcher) prefixed(ctx context.Context, userID int64, text string) (string, bool) {
	cmd, payload := splitCommand(text)
	help, known := usage[cmd]
	if !known {
		return "", false
	}

	// Commands that act on the sender need an identity
	switch cmd {
	case "/cli", "/add", "/remove", "/alert", "/monitor":
		if userID == 0 {
			return unknownText, true
		}
	}

	if cmd == "/cli" {
		// Gate before usage
		if !d.privileged(ctx, userID) {
			return refusalText, true
		}
		if !d.Config.CLI.Enabled || d.Tasks == nil {
			return cliDisabledText, true
		}
	}

	if payload == "" {
		return help, true
	}

	switch cmd {
	case "/cli":
		return d.startTask(userID, payload), true
	case "/search", "/find":
		reply, found := d.search(ctx, userID, payload)
		if found && userID != 0 {
			d.Sessions.Set(userID, models.AtPrompt(models.PromptResultsReady))
		}
		return reply, true
	case "/code":
		if !codePattern.MatchString(payload) {
			return codeFormatText, true
		}
		return d.quote(ctx, userID, payload), true
	case "/stock", "/주식":
		return d.quote(ctx, userID, payload), true
	case "/stocks":
		return d.multiQuote(ctx, payload), true
	case "/add":
		reply, _ := d.addHolding(userID, payload, addFormatText, addNumberText)
		return reply, true
	case "/remove":
		_, reply := d.Portfolio.Remove(userID, payload)
		return reply, true
	case "/alert":
		return d.subscribeAlert(ctx, userID, payload), true
	case "/monitor":
		return d.startMonitor(ctx, userID, payload), true
	}
	return "", false
}

// splitCommand separates the first whitespace-delimited token from the rest
func splitCommand(text string) (string, string) {
	idx := strings.IndexFunc(text, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if idx < 0 {
		return text, ""
	}
	return text[:idx], strings.TrimSpace(text[idx:])
}

// -----------------------------------------------------------------------------
// Step 3: live session
// -----------------------------------------------------------------------------

func (d *Dispatcher) inSession(ctx context.Context, userID int64, state models.MState, text string) (string, bool) {
	level := state.Level()
	isDigits := digitsPattern.MatchString(text)
	isCommand := strings.HasPrefix(text, "/")

	if level == models.LevelMain {
		if !isDigits {
			return "", false
		}
		return d.mainMenu(userID, text), true
	}

	if text == "0" {
		d.Sessions.Set(userID, models.AtLevel(models.LevelMain))
		return backText + "\n\n" + mainMenuText, true
	}

	if state.HasPrompt() {
		if state.Prompt() == models.PromptResultsReady {
			if isDigits {
				return d.selectResult(ctx, userID, text), true
			}
			if isCommand {
				return "", false
			}
			return d.promptSearch(ctx, userID, text), true
		}
		if isCommand {
			return "", false
		}
		return d.promptInput(ctx, userID, state.Prompt(), text), true
	}

	if isDigits {
		return d.levelItem(ctx, userID, level, text), true
	}
	return "", false
}

func (d *Dispatcher) mainMenu(userID int64, choice string) string {
	var level models.MenuLevel
	switch choice {
	case "1":
		level = models.LevelStockSearch
	case "2":
		level = models.LevelMarketInfo
	case "3":
		level = models.LevelPortfolio
	case "4":
		level = models.LevelAlertMonitor
	case "5":
		level = models.LevelHelp
	default:
		return invalidInputText
	}
	d.Sessions.Set(userID, models.AtLevel(level))
	return levelMenu(level)
}

func (d *Dispatcher) levelItem(ctx context.Context, userID int64, level models.MenuLevel, choice string) string {
	switch level {
	case models.LevelStockSearch:
		switch choice {
		case "1":
			d.Sessions.Set(userID, models.AtPrompt(models.PromptAwaitKeyword))
			return keywordPromptText
		case "2":
			d.Sessions.Refresh(userID)
			return d.stockList()
		case "3":
			d.Sessions.Set(userID, models.AtPrompt(models.PromptAwaitCode))
			return codePromptText
		}
	case models.LevelMarketInfo:
		switch choice {
		case "1":
			d.Sessions.Refresh(userID)
			return d.marketIndex(ctx)
		case "2":
			d.Sessions.Refresh(userID)
			return d.popular(ctx)
		}
	case models.LevelPortfolio:
		switch choice {
		case "1":
			d.Sessions.Refresh(userID)
			return d.Portfolio.View(userID)
		case "2":
			d.Sessions.Set(userID, models.AtPrompt(models.PromptAwaitAdd))
			return addPromptText
		case "3":
			d.Sessions.Set(userID, models.AtPrompt(models.PromptAwaitRemove))
			return removePromptText
		}
	case models.LevelAlertMonitor:
		switch choice {
		case "1":
			d.Sessions.Set(userID, models.AtPrompt(models.PromptAwaitAlert))
			return alertPromptText
		case "2":
			d.Sessions.Set(userID, models.AtPrompt(models.PromptAwaitMonitor))
			return monitorPromptText
		case "3":
			d.Sessions.Refresh(userID)
			return d.status(userID)
		case "4":
			d.Sessions.Refresh(userID)
			return d.stop(userID)
		}
	}
	return invalidInputText
}

func (d *Dispatcher) promptInput(ctx context.Context, userID int64, p models.Prompt, text string) string {
	switch p {
	case models.PromptAwaitKeyword:
		return d.promptSearch(ctx, userID, text)

	case models.PromptAwaitCode:
		if !codePattern.MatchString(text) {
			d.Sessions.Refresh(userID)
			return codeFormatText
		}
		d.Sessions.Set(userID, models.AtLevel(models.LevelStockSearch))
		return d.quote(ctx, userID, text)

	case models.PromptAwaitAdd:
		reply, ok := d.addHolding(userID, text, invalidInputText, invalidInputText)
		if ok {
			d.Sessions.Set(userID, models.AtLevel(models.LevelPortfolio))
		} else {
			d.Sessions.Refresh(userID)
		}
		return reply

	case models.PromptAwaitRemove:
		d.Sessions.Set(userID, models.AtLevel(models.LevelPortfolio))
		_, reply := d.Portfolio.Remove(userID, text)
		return reply

	case models.PromptAwaitAlert:
		d.Sessions.Set(userID, models.AtLevel(models.LevelAlertMonitor))
		return d.subscribeAlert(ctx, userID, text)

	case models.PromptAwaitMonitor:
		d.Sessions.Set(userID, models.AtLevel(models.LevelAlertMonitor))
		return d.startMonitor(ctx, userID, text)
	}
	return invalidInputText
}

// promptSearch runs a search typed into the keyword or results prompt. With
// no match the user stays where they are and can type another keyword.
func (d *Dispatcher) promptSearch(ctx context.Context, userID int64, keyword string) string {
	reply, found := d.search(ctx, userID, keyword)
	if found {
		d.Sessions.Set(userID, models.AtPrompt(models.PromptResultsReady))
	} else {
		d.Sessions.Refresh(userID)
	}
	return reply
}

// -----------------------------------------------------------------------------
// Step 4: numbered selection
// -----------------------------------------------------------------------------

func (d *Dispatcher) selectResult(ctx context.Context, userID int64, text string) string {
	if userID == 0 {
		return unknownText
	}
	index, err := strconv.Atoi(text)
	if err != nil {
		return noResultsText
	}
	result, ok := d.Cache.GetByIndex(userID, index)
	if !ok {
		return noResultsText
	}
	return d.quote(ctx, userID, result.Name)
}
