package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapError is a structured error: a message plus an array of key/value
// pairs that zap can render without re-parsing a formatted string.
type ZapError struct {
	msg string
	kv  []interface{}
}

func (ze ZapError) Error() string {
	return ze.msg
}

// MarshalLogObject lets zap render a ZapError's key/value pairs as
// structured fields instead of a flat string.
func (ze ZapError) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	var invalid invalidPairs

	enc.AddString("msg", ze.msg)
	for i := 0; i < len(ze.kv); {
		if field, ok := ze.kv[i].(zapcore.Field); ok {
			field.AddTo(enc)
			i++
			continue
		}

		if i == len(ze.kv)-1 {
			zap.Any("ignored", ze.kv[i]).AddTo(enc)
			break
		}

		key, val := ze.kv[i], ze.kv[i+1]
		if keyStr, ok := key.(string); !ok {
			if cap(invalid) == 0 {
				invalid = make(invalidPairs, 0, len(ze.kv)/2)
			}
			invalid = append(invalid, invalidPair{i, key, val})
		} else {
			zap.Any(keyStr, val).AddTo(enc)
		}

		i += 2
	}

	if len(invalid) > 0 {
		zap.Array("invalid", invalid).AddTo(enc)
	}

	return nil
}

type invalidPair struct {
	position   int
	key, value interface{}
}

func (p invalidPair) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt64("position", int64(p.position))
	zap.Any("key", p.key).AddTo(enc)
	zap.Any("value", p.value).AddTo(enc)
	return nil
}

type invalidPairs []invalidPair

func (ps invalidPairs) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for i := range ps {
		enc.AppendObject(ps[i])
	}
	return nil
}

// Errorw builds a ZapError carrying msg plus structured key/value pairs,
// suitable for zap.Error(err) at a call site that also wants fields.
func Errorw(msg string, args ...interface{}) ZapError {
	return ZapError{msg: msg, kv: args}
}
