// Package provider manages delivery channel configurations: the SMTP
// servers and HTTP email API accounts campaigns send through. Credentials
// are stored per provider and validated against the channel type before
// any run can select it.
package provider
