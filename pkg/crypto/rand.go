package crypto

import "crypto/rand"

var randRead = rand.Read

// cryptoRandRead is swapped in tests.
var cryptoRandRead = randRead
