// Package middleware contains HTTP middleware for the Fiber application.
//
// # Components
//
//   - auth: validates the service API key (X-API-Key header or api_key query) on every route
//     except the configured skip list.
//   - rayid: tags every request with a RayID, stored in locals and echoed in the X-Ray-ID
//     response header, so logs from one request can be correlated.
package middleware
