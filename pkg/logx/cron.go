package logx

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// CronLogger adapts l to cron.Logger.
//
// robfig/cron logs every wake-up and dispatch at info; those go to trace here
// so a normal info-level console stays quiet.
func CronLogger(l Logger) cron.Logger {
	return cronLogger{l: l}
}

type cronLogger struct{ l Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if !c.l.Enabled(LevelTrace) {
		return
	}
	c.l.Trace("cron: "+msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := append(kvFields(keysAndValues), Err(err))
	c.l.Error("cron: "+msg, fields...)
}

func kvFields(kv []interface{}) []Field {
	out := make([]Field, 0, len(kv)/2+1)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			k = fmt.Sprint(kv[i])
		}
		out = append(out, Any(k, kv[i+1]))
	}
	if len(kv)%2 == 1 {
		out = append(out, Any("extra", kv[len(kv)-1]))
	}
	return out
}
