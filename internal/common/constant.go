package common

// RefreshTokenSize is the number of random bytes behind a refresh token.
// Encoded with standard base64 it is always 44 characters long.
const RefreshTokenSize = 32
