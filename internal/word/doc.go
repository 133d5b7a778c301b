// Package word defines the input side of a learning run: a fixed, ordered
// Alphabet of symbols and immutable Words over it.
//
// Words are values. Every operation that "changes" a word returns a new one
// and never aliases the receiver's backing array, so words can be used as
// row labels and suffixes without defensive copies at the call site.
//
// Map keys: Word is not comparable (it wraps a slice). Use Alphabet.Key to
// obtain a compact string key made of the symbols' alphabet indices.
package word
