// Package reddit models reddit live threads as lazily populated proxies over
// the REST API.
//
// Objects never talk to the network themselves. Every call goes through a
// Requester, which owns transport, authentication and decoding (see the
// session package for the HTTP implementation):
//
//	thread, err := reddit.NewLiveThread(client, "ukaeu1ik4sw5", nil)
//	if err != nil {
//		return err
//	}
//	title, err := thread.Title(ctx) // first read fetches api/live/{id}/about
//
// Listings are lazy as well. Updates and Discussions return a generator
// that issues requests only as items are consumed.
package reddit
