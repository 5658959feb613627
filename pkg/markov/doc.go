/*
Package markov provides an in-memory, order-k Markov chain model over the
characters (runes) of a training text.

A Model is built once from a text and an order and is read-only afterwards,
so it can be shared freely between goroutines. It answers frequency queries
about k-length contexts, samples and generates new text by simulating the
chain, and restores corrupted text by finding the assignment of placeholder
characters with the highest likelihood under the chain.

The training text is treated as circular: it is conceptually followed by its
own first k characters, so every position has a successor and generation
never runs off the end of the text it learned from.
*/
package markov
