package katoni

// Version of the client library, reported in the User-Agent header.
const Version = "1.0"

const userAgentSuffix = "katoni-api-go-client/"
