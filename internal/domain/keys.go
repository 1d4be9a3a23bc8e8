package domain

// KeyPrefix namespaces every key flora writes to a shared store.
const KeyPrefix = "flora:"
