// Package email sends transactional email.
//
// Bodies are rendered from templ components with Render and delivered through
// a Sender: PostmarkSender in production, DevSender (files on disk) in
// development and MemorySender in tests. NewSender picks one from Config.
package email
