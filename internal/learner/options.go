package learner

import (
	"log/slog"

	"github.com/roach88/lstar/internal/cex"
	"github.com/roach88/lstar/internal/closing"
	"github.com/roach88/lstar/internal/word"
)

// Option configures a Learner.
type Option[I, O comparable, A Hypothesis[I, O]] func(*Learner[I, O, A])

// WithInitialSuffixes sets the table's initial columns. Without it the
// builder's DefaultSuffixes are used. The list is copied.
func WithInitialSuffixes[I, O comparable, A Hypothesis[I, O]](suffixes ...word.Word[I]) Option[I, O, A] {
	return func(l *Learner[I, O, A]) {
		l.initialSuffixes = append([]word.Word[I](nil), suffixes...)
		l.suffixesSet = true
	}
}

// WithClosingStrategy sets the closing strategy.
//
// Default: closing.First.
func WithClosingStrategy[I, O comparable, A Hypothesis[I, O]](s closing.Strategy[I, O]) Option[I, O, A] {
	return func(l *Learner[I, O, A]) {
		l.closing = s
	}
}

// WithCounterexampleHandler sets the counterexample handler.
//
// Default: cex.Classic.
func WithCounterexampleHandler[I, O comparable, A Hypothesis[I, O]](h cex.Handler[I, O]) Option[I, O, A] {
	return func(l *Learner[I, O, A]) {
		l.handler = h
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger[I, O comparable, A Hypothesis[I, O]](logger *slog.Logger) Option[I, O, A] {
	return func(l *Learner[I, O, A]) {
		l.logger = logger
	}
}

// WithObserver registers an observer notified of round events.
func WithObserver[I, O comparable, A Hypothesis[I, O]](obs Observer[I, O, A]) Option[I, O, A] {
	return func(l *Learner[I, O, A]) {
		l.observers = append(l.observers, obs)
	}
}

// WithMaxRounds bounds the number of hypotheses Run and Refine may build.
// Zero (the default) means unbounded.
//
// For a finite deterministic system the number of rounds is bounded by its
// minimal state count, so a limit only guards against a misbehaving
// equivalence oracle or system.
func WithMaxRounds[I, O comparable, A Hypothesis[I, O]](n int) Option[I, O, A] {
	return func(l *Learner[I, O, A]) {
		l.maxRounds = n
	}
}
