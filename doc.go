// Package goresource exposes a data store through a uniform create, search,
// update, get and remove HTTP resource contract.
//
// Overview
//
// Untrusted client input never reaches a Model unchecked. Every request
// carries two trust markers:
//   - the body marker, set by a body validator (see ValidateBody, Fields);
//   - the query marker, set only by the tag resolvers of this package
//     (CompileQueryTag, CompileSearchTag, CompileGetTag).
//
// ApiController refuses to create or update without the body marker and to
// search without the query marker. Update, get and remove use the query only
// to narrow the target when it is trusted.
//
// Key concepts
//   - Model: the storage contract of one collection. GormModel and SQLXModel
//     implement it on relational stores.
//   - FilterCompiler: turns filter strings like `name:"bob" age:>21` into
//     Filter values, allowed by per-field policies.
//   - SearchStrategy: paginates a search. SkipAndLimit uses count, offset
//     and limit.
//   - Connections: named pools of handles the controller checks out per
//     request.
//
// The ginapi subpackage binds resources and request filters onto gin.
package goresource
