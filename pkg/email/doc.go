// Package email sends transactional mail: member invitations, invoice
// reminders with the PDF attached and data-export links.
//
// EmailSender has two implementations. The Postmark client delivers in
// staging and production; DevSender writes each message to disk so local
// runs never reach a real inbox. Bodies are templ components rendered with
// Render.
package email
