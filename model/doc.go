// Package model provides the intermediate representation shared by the
// stamping pipeline.
//
// A [Document] holds the ordered pages of a parsed PDF together with the
// raw object graph it was loaded from, so unstamped pages can be written
// back byte-faithfully. A [Page] carries its media box, rotation, content
// streams and resources. Overlay generation produces synthetic pages whose
// content is expressed as [Operation] lists; composited pages mix raw
// source streams with synthetic ones.
package model
