package consts

const (
	// DefaultDBName is the default database name for document databases (mongo, neo4j).
	DefaultDBName = "docscope"

	// TableNameDocuments is the table holding documents.
	TableNameDocuments = "documents"

	// TableNameSelections is the table/collection holding per-user selections.
	TableNameSelections = "selections"

	// Column names
	ColID         = "id"
	ColUserID     = "user_id"
	ColDocumentID = "document_id"
	ColDocuments  = "document_ids"
	ColTitle      = "title"
	ColEmbedding  = "embedding"
	ColCreatedAt  = "created_at"
	ColUpdatedAt  = "updated_at"

	// Redis keys
	RedisSelectionPrefix = "selection:user:"

	// Neo4j specific
	LabelUser    = "User"
	LabelDoc     = "Document"
	RelSelected  = "SELECTED"
	PropertyID   = "id"
	DefaultNeo4j = "neo4j"
)
