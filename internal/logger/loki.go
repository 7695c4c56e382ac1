package logger

import (
	"context"
	"fmt"
	"github.com/maxaizer/shiftmatch/pkg/loki"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"path/filepath"
	"sort"
	"strings"
)

const sourceField = "source"

var lokiPusher *loki.Pusher

// pusherErrors routes the pusher's own failures back into logrus, marked so the hook skips them.
type pusherErrors struct{}

func (pusherErrors) Error(msg string, args ...any) {
	log.WithFields(log.Fields{"args": args, sourceField: "loki"}).Error(msg)
}

type lokiHook struct {
	pusher *loki.Pusher
	levels []log.Level
}

func (h *lokiHook) Fire(entry *log.Entry) error {
	if entry.Data[sourceField] == "loki" {
		return nil
	}
	return h.pusher.Push(toLokiEntry(entry))
}

func (h *lokiHook) Levels() []log.Level {
	return h.levels
}

// toLokiEntry flattens a logrus entry. Structured fields such as offer or request ids are appended to the
// message in key order so they stay searchable in loki.
func toLokiEntry(entry *log.Entry) loki.LogEntry {
	lokiEntry := loki.LogEntry{Level: entry.Level.String(), Message: entry.Message}

	if entry.Caller != nil {
		lokiEntry.Caller = fmt.Sprintf("%s:%d", filepath.Base(entry.Caller.Function), entry.Caller.Line)
	}
	lokiEntry.ErrorType, _ = entry.Data[ErrorTypeField].(string)

	keys := lo.Filter(lo.Keys(entry.Data), func(key string, _ int) bool {
		return key != ErrorTypeField && key != sourceField
	})
	if len(keys) == 0 {
		return lokiEntry
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(entry.Message)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%v", key, entry.Data[key])
	}
	lokiEntry.Message = b.String()
	return lokiEntry
}

func addLokiHook(ctx context.Context, cfg loki.Config, minLevel log.Level) error {
	pusher, err := loki.New(ctx, cfg, pusherErrors{})
	if err != nil {
		return err
	}

	lokiPusher = pusher
	log.AddHook(&lokiHook{
		pusher: pusher,
		levels: lo.Filter(log.AllLevels, func(level log.Level, _ int) bool { return level <= minLevel }),
	})
	log.Infof("loki logging enabled, pushing to %s", cfg.Url)
	return nil
}

func stopLoki() {
	if lokiPusher == nil {
		return
	}
	lokiPusher.Stop()
	if dropped := lokiPusher.Dropped(); dropped > 0 {
		log.Warnf("loki buffer overflowed, %d entries were dropped", dropped)
	}
	lokiPusher = nil
}
