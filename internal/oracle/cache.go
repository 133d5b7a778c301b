package oracle

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/lstar/internal/word"
)

// Cache is a deduplicating MembershipOracle decorator.
//
// Answers are stored in a prefix tree indexed by alphabet position, so words
// sharing a prefix share storage. Each word is forwarded to the delegate at
// most once over the cache's lifetime, and a batch containing the same word
// several times forwards it once.
//
// Thread-safety: Answer may be called concurrently. The lock is not held
// while the delegate runs, so two concurrent batches can both miss on the
// same word; the second insert is a no-op.
type Cache[I comparable, O any] struct {
	alphabet *word.Alphabet[I]
	delegate MembershipOracle[I, O]

	mu     sync.Mutex
	root   *trieNode[O]
	size   int
	hits   int
	misses int
}

type trieNode[O any] struct {
	children []*trieNode[O]
	output   O
	known    bool
}

// NewCache wraps delegate with a trie cache over alphabet.
func NewCache[I comparable, O any](alphabet *word.Alphabet[I], delegate MembershipOracle[I, O]) *Cache[I, O] {
	return &Cache[I, O]{
		alphabet: alphabet,
		delegate: delegate,
		root:     &trieNode[O]{children: make([]*trieNode[O], alphabet.Size())},
	}
}

// Answer resolves cached words locally and forwards the rest in one batch.
func (c *Cache[I, O]) Answer(ctx context.Context, queries []word.Word[I]) ([]O, error) {
	out := make([]O, len(queries))

	var missWords []word.Word[I]
	missSlots := make(map[string][]int)
	var missOrder []string

	c.mu.Lock()
	for i, q := range queries {
		if !c.alphabet.Contains(q) {
			c.mu.Unlock()
			return nil, fmt.Errorf("cache: query %q contains symbols outside the alphabet", q)
		}
		if n := c.lookup(q); n != nil && n.known {
			out[i] = n.output
			c.hits++
			continue
		}
		key := c.alphabet.MustKey(q)
		if _, seen := missSlots[key]; !seen {
			missOrder = append(missOrder, key)
			missWords = append(missWords, q)
		} else {
			c.hits++
		}
		missSlots[key] = append(missSlots[key], i)
	}
	c.mu.Unlock()

	if len(missWords) == 0 {
		return out, nil
	}

	answers, err := c.delegate.Answer(ctx, missWords)
	if err != nil {
		return nil, err
	}
	if err := CheckAnswers(len(missWords), answers); err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for j, key := range missOrder {
		c.insert(missWords[j], answers[j])
		c.misses++
		for _, slot := range missSlots[key] {
			out[slot] = answers[j]
		}
	}
	return out, nil
}

// Lookup returns the cached output for w, if any.
func (c *Cache[I, O]) Lookup(w word.Word[I]) (O, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero O
	if !c.alphabet.Contains(w) {
		return zero, false
	}
	n := c.lookup(w)
	if n == nil || !n.known {
		return zero, false
	}
	return n.output, true
}

// Size returns the number of cached words.
func (c *Cache[I, O]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Stats returns the number of answers served from cache and forwarded.
func (c *Cache[I, O]) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// lookup walks the trie. Caller holds mu and has checked the alphabet.
func (c *Cache[I, O]) lookup(w word.Word[I]) *trieNode[O] {
	n := c.root
	for i := 0; i < w.Len(); i++ {
		idx, _ := c.alphabet.Index(w.At(i))
		n = n.children[idx]
		if n == nil {
			return nil
		}
	}
	return n
}

// insert stores out for w, creating nodes as needed. Caller holds mu.
func (c *Cache[I, O]) insert(w word.Word[I], out O) {
	n := c.root
	for i := 0; i < w.Len(); i++ {
		idx, _ := c.alphabet.Index(w.At(i))
		next := n.children[idx]
		if next == nil {
			next = &trieNode[O]{children: make([]*trieNode[O], c.alphabet.Size())}
			n.children[idx] = next
		}
		n = next
	}
	if !n.known {
		n.output = out
		n.known = true
		c.size++
	}
}
