// Package domain contains the core types of the action replay system:
// session records, credentials, action requests and their results, plus the
// capability interfaces (session store, action driver, registry) that the
// concrete backends implement. It has no dependencies on transport or storage.
package domain
