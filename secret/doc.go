// Package secret holds the upstream credential and keeps it out of every
// externally visible surface.
//
// Manager retains only a hash of the credential. ErrorSanitizer turns
// internal errors into public ones. Resolver expands configuration values
// of the form
//
//	secretref:<provider>:<ref>
//
// through registered providers: env, file and vault. Environment
// references like ${DEEPSEEK_API_KEY} are expanded first, strictly.
package secret
