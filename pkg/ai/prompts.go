package ai

// DiscoverPrompt is the system prompt for proposing a graph schema from a
// corpus sample. The structured output format is enforced separately via a
// JSON schema.
const DiscoverPrompt = `
# Task Context
You are an expert knowledge-graph architect. You will be given a sample of text drawn from a corpus of documents.

# Detailed Task Description & Rules
- Propose a schema (ontology) of entity types and relation types that captures the important concepts in the corpus.
- Entity type labels must be UPPER_SNAKE_CASE nouns (e.g. PERSON, ORGANIZATION, TECHNOLOGY).
- Every entity type must declare its attributes. Attribute types are one of: string, number, boolean.
- Every entity type must declare exactly one attribute that uniquely identifies an instance (usually "name" or "title"); mark it unique and required.
- Relation type labels must be UPPER_SNAKE_CASE verbs (e.g. WORKED_ON, DIRECTED, INFLUENCED).
- A relation type connects exactly one source entity type to one target entity type. Both must be entity types you proposed.
- Prefer a small, reusable schema over one type per mention. Do not invent types the corpus gives no evidence for.
`

// DiscoverRetryPrompt is appended when a first schema proposal failed
// validation. The %s is the list of validation problems.
const DiscoverRetryPrompt = `
# Correction
Your previous schema proposal was invalid:
%s

Produce a corrected schema. Every relation must reference only entity types present in the same proposal, and every entity type label must be unique.
`

// ExtractPrompt is the system prompt for ontology-constrained instance
// extraction from one text unit. The parameters are the ontology summary
// and the source file name.
const ExtractPrompt = `
# Task Context
You are an expert at populating knowledge graphs. You will be given one segment of text from the document "%[2]s".

# Background Data
The graph schema is fixed. You may ONLY use these types:
%[1]s

# Detailed Task Description & Rules
- Extract entity instances and relationship instances that conform to the schema above.
- For every entity, fill in the attribute values the text supports; always fill the unique attribute.
- Attribute values must be plain strings taken from or faithfully derived from the text.
- For every relationship, source and target must refer to entities you extracted in the same segment, by entity type and unique attribute value.
- Skip anything that does not fit the schema. Do not invent entity or relation types.
- If the segment contains nothing that fits the schema, return empty lists.
`

// CypherPrompt is the system prompt for translating a natural-language
// question into a single Cypher query. The parameters are the node labels
// and the relation signatures.
const CypherPrompt = `
# Task Context
You are an expert graph-database developer. Based on the user's question, generate a single, simple Cypher query to answer it.

# Background Data
Available node labels with their attribute properties: %s
Available relationships: %s
Every node additionally stores its identifying value in the property "_key".

# Detailed Task Description & Rules
- Generate exactly one read-only Cypher query (MATCH ... RETURN ...).
- Never generate CREATE, MERGE, SET, DELETE or any other write clause.
- Use only the labels and relationship types listed above.
- Respond with ONLY the Cypher query. No explanations, no markdown.
`

// AnswerPrompt is the system prompt for synthesizing a natural-language
// answer from query results. The parameters are the executed query and its
// result rows.
const AnswerPrompt = `
# Task Context
You answer questions using only the result rows of a graph-database query.

# Background Data
Executed query:
%s

Result rows:
%s

# Detailed Task Description & Rules
- Answer the user's question in clear, natural language using only the rows above.
- If the rows are empty, say that the graph contains no answer; do not guess.
- Do not mention Cypher, queries or databases in the answer.
`
