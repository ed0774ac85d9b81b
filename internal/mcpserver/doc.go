// Package mcpserver exposes the corpus to Model Context Protocol clients.
//
// The server registers four tools, list_standards, read_standard,
// search_standards, and audit_corpus, plus a JSON inventory resource at
// playbook://standards and one markdown resource per document at
// playbook://standards/{slug}. Sessions run over stdio for local agents or
// over streamable HTTP when the handler is mounted next to the JSON API.
package mcpserver
