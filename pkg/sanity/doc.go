// Package sanity provides the types shared by the Sanity.io HTTP API client:
// configuration, query and mutation requests, asset uploads, responses, and
// the error taxonomy.
//
// # Overview
//
// The sanity package defines the request and response models and the typed
// errors returned by every operation. A concrete client is provided by the
// sanityclient package, which resolves configuration against the process
// environment and wires transport, retries, and logging. Most consumers should
// import sanityclient to construct a client and use the models defined here.
//
// Getting a client
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/nc9/sanity-go/pkg/sanity"
//	  "github.com/nc9/sanity-go/pkg/sanityclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//	  cli, err := sanityclient.New(ctx, &sanity.Config{ProjectID: "abc123"})
//	  if err != nil { log.Fatal(err) }
//	  defer cli.Close()
//
//	  res, err := cli.Query(ctx, sanity.NewQuery(`*[_type == "post"][0...10]`))
//	  if err != nil { log.Fatal(err) }
//
//	  var posts []map[string]any
//	  _ = res.Decode(&posts)
//	}
//
// # Mutations
//
// Mutations are built with constructors and submitted as one transaction:
//
//	_, err := cli.Mutate(ctx, []sanity.Mutation{
//	  sanity.Create(sanity.Document{"_type": "post", "title": "Hello"}),
//	  sanity.PatchID("post-1").Set("title", "Updated").Inc("views", 1).Mutation(),
//	  sanity.Delete("post-2"),
//	}, &sanity.MutationOptions{ReturnIDs: true})
//
// # Errors
//
// Failures are typed. Use errors.As for details or the Is helpers:
//
//	if sanity.IsRateLimited(err) {
//	  wait, _ := sanity.RetryAfter(err)
//	  _ = wait
//	}
package sanity
