// Package retrieval ranks the documents in a user's scope by cosine distance
// to a question.
//
// The Engine embeds the question, keeps the scoped documents that carry an
// embedding and hands them to a Ranker. Exact computes every distance in
// process. The pgvector document store and the qdrant index push the same
// ordering into their engines; their output is re-sorted by (distance, id)
// so every ranker breaks ties the same way.
package retrieval
