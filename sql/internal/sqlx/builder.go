// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package sqlx

import (
	"bytes"
	"strings"
)

// Builder provides a helper for constructing SQL statements. Identifiers
// written through Ident are quoted with QuoteChar only when the caller
// requests it with a leading/trailing quote requirement; plain identifiers
// are written as-is, since identifier normalization happens before the
// builder is involved.
type Builder struct {
	bytes.Buffer
	QuoteChar byte
}

// B instantiates a new builder and writes the given phrase to it.
func B(phrase string) *Builder {
	b := &Builder{QuoteChar: '"'}
	return b.P(phrase)
}

// P writes the given phrases to the builder, separated by spaces.
func (b *Builder) P(phrases ...string) *Builder {
	for _, p := range phrases {
		if p == "" {
			continue
		}
		if b.Len() > 0 && b.lastByte() != ' ' && b.lastByte() != '(' {
			b.WriteByte(' ')
		}
		b.WriteString(p)
	}
	return b
}

// Ident writes the given identifier, quoting it if it is not a plain
// lower-case identifier.
func (b *Builder) Ident(s string) *Builder {
	if s == "" {
		return b
	}
	if b.Len() > 0 && b.lastByte() != ' ' && b.lastByte() != '(' && b.lastByte() != '.' {
		b.WriteByte(' ')
	}
	if needQuote(s) {
		b.WriteByte(b.QuoteChar)
		b.WriteString(strings.ReplaceAll(s, string(b.QuoteChar), string(b.QuoteChar)+string(b.QuoteChar)))
		b.WriteByte(b.QuoteChar)
	} else {
		b.WriteString(s)
	}
	return b
}

// Table writes a schema-qualified table (or any relation) name.
func (b *Builder) Table(schema, name string) *Builder {
	if schema != "" {
		b.Ident(schema)
		b.WriteByte('.')
	}
	return b.Ident(name)
}

// Comma writes a comma. Trailing spaces are rewound first.
func (b *Builder) Comma() *Builder {
	b.rewindSpace()
	b.WriteString(", ")
	return b
}

// Wrap wraps the output of f in parentheses.
func (b *Builder) Wrap(f func(*Builder)) *Builder {
	if b.Len() > 0 && b.lastByte() != ' ' {
		b.WriteByte(' ')
	}
	b.WriteByte('(')
	f(b)
	b.rewindSpace()
	b.WriteByte(')')
	return b
}

// MapComma calls f for indexes [0, n) and writes a comma between calls.
func (b *Builder) MapComma(n int, f func(i int, b *Builder)) *Builder {
	for i := 0; i < n; i++ {
		if i > 0 {
			b.Comma()
		}
		f(i, b)
	}
	return b
}

// String overrides Buffer.String to trim trailing spaces.
func (b *Builder) String() string {
	return strings.TrimRight(b.Buffer.String(), " ")
}

func (b *Builder) lastByte() byte {
	buf := b.Buffer.Bytes()
	return buf[len(buf)-1]
}

func (b *Builder) rewindSpace() {
	for b.Len() > 0 && b.lastByte() == ' ' {
		b.Truncate(b.Len() - 1)
	}
}

func needQuote(s string) bool {
	if s[0] >= '0' && s[0] <= '9' {
		return true
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '$':
		default:
			return true
		}
	}
	return false
}
