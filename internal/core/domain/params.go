package domain

// PriorityExpiration is the number of Ethereum blocks a priority operation
// stays eligible for inclusion after the block it was emitted in.
const PriorityExpiration uint64 = 35000
