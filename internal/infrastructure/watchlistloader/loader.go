package watchlistloader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"buybot/internal/app/port"
	"buybot/internal/domain/entity"
	"buybot/internal/pkg/utils"
)

// Entry is one watchlist line: a token to track for a chat, with an optional threshold.
type Entry struct {
	TokenAddress    string
	ChatID          int64
	MinBuyAmountUSD float64 // 0 means the configured default
}

// WatchlistFileLoader reads `address chatId [minUsd]` lines from a file.
type WatchlistFileLoader struct {
	filePath string
	logger   port.Logger
}

// NewWatchlistFileLoader creates a loader for filePath.
func NewWatchlistFileLoader(filePath string, logger port.Logger) *WatchlistFileLoader {
	return &WatchlistFileLoader{filePath: filePath, logger: logger}
}

// GetEntries parses the watchlist. Blank lines and `#` comments are ignored,
// malformed lines are skipped with a log line.
func (l *WatchlistFileLoader) GetEntries() ([]Entry, error) {
	file, err := os.Open(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open watchlist file %s: %w", l.filePath, err)
	}
	defer file.Close()

	entries, err := l.parse(file)
	if err != nil {
		return nil, fmt.Errorf("error scanning watchlist file %s: %w", l.filePath, err)
	}
	l.logger.Info("Watchlist loaded successfully from file", "count", len(entries), "path", l.filePath)
	return entries, nil
}

func (l *WatchlistFileLoader) parse(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		entry, err := parseFields(fields)
		if err != nil {
			l.logger.Warn("Skipping invalid watchlist line", "file", l.filePath, "line_number", lineNum, "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, scanner.Err()
}

func parseFields(fields []string) (Entry, error) {
	if len(fields) < 2 || len(fields) > 3 {
		return Entry{}, fmt.Errorf("expected `address chatId [minUsd]`, got %d fields", len(fields))
	}
	addr, ok := utils.NormalizeAddress(fields[0])
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", entity.ErrInvalidAddress, fields[0])
	}
	chatID, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("invalid chat id %q: %w", fields[1], err)
	}
	entry := Entry{TokenAddress: addr, ChatID: chatID}
	if len(fields) == 3 {
		minUSD, err := strconv.ParseFloat(fields[2], 64)
		if err != nil || minUSD < 0 {
			return Entry{}, fmt.Errorf("%w: %q", entity.ErrInvalidAmount, fields[2])
		}
		entry.MinBuyAmountUSD = minUSD
	}
	return entry, nil
}

// Seed tracks every entry in registry and returns how many were added.
// Entries already tracked are not an error.
func (l *WatchlistFileLoader) Seed(registry port.SubscriptionRegistry) (int, error) {
	entries, err := l.GetEntries()
	if err != nil {
		return 0, err
	}
	added := 0
	for _, e := range entries {
		_, err := registry.Track(e.TokenAddress, e.ChatID, e.MinBuyAmountUSD)
		switch {
		case err == nil:
			added++
		case errors.Is(err, entity.ErrAlreadyTracked):
		default:
			l.logger.Warn("Failed to seed watchlist entry", "token", e.TokenAddress, "chat_id", e.ChatID, "error", err)
		}
	}
	return added, nil
}
