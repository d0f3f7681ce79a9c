// Package gateway wires the whole system together and runs it.
//
// # Overview
//
// The gateway owns one of everything: the session pool, the tool
// registry, the command router, the execution engine, the result
// formatter, the conversation context, and the enabled front-ends. Each
// inbound message gets its own goroutine and flows through Handle:
//
//	route → execute → repair (at most once) → format → remember
//
// # Admin API
//
// A plain HTTP surface drives operations:
//
//	GET    /api/servers                  list registered providers
//	POST   /api/servers                  register (and optionally connect)
//	POST   /api/servers/{alias}/connect  connect now
//	DELETE /api/servers/{alias}          disconnect; ?forget=true removes it
//	GET    /api/tools                    the namespaced tool catalog
//	POST   /api/message                  run one message through the pipeline
//	GET    /api/quests                   list a user's quests
//	POST   /api/quests                   create a quest
//	POST   /api/quests/{id}/complete     mark a quest done
//
// Disconnecting the default provider with forget is rejected: the chat
// fallback must always have somewhere to go.
package gateway
