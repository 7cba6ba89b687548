// Package chat implements the streaming retrieval chat pipeline: the state
// machine that turns a user message into a streamed, cited assistant answer.
//
// One call to Coordinator.Stream processes one turn. The pipeline decides
// whether the knowledge base should be searched (Decider), runs at most
// MaxToolCalls retrieval calls with bounded timeouts (ToolRunner), streams
// the synthesized answer chunk by chunk, resolves inline citation markers
// against the retrieved chunks (Resolve), and commits the finished turn to
// the conversation store in a single atomic write.
//
// External collaborators are consumed through small interfaces declared in
// this package (Retriever, Completion, Store). Retrieval failures are
// absorbed into the ToolCall record and never abort a turn; completion and
// store failures are fatal and surface as a terminal error event. A turn is
// persisted only when it completes; a cancelled or failed turn leaves no
// trace in history, so the client can retry the same message without
// duplicates.
package chat
