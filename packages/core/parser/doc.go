// Package parser reads declaration files.
//
// A declaration file is a YAML, JSON or Hyperlambda document holding either
// a single declaration:
//
//	verb: post
//	url: https://api.example.com/users
//	headers:
//	  Content-Type: application/json
//	payload:
//	  name: John
//
// or any number of declarations keyed by their slot name:
//
//	variables:
//	  base: https://api.example.com
//	http.get:
//	  url: "{{base}}/users/1"
//	http.delete:
//	  url: "{{base}}/users/2"
//
// In Hyperlambda the URL is the value of the slot node itself:
//
//	http.get:"https://api.example.com/users/1"
//	   headers
//	      Accept:application/json
//
// The parser only normalizes the document shape. Reference resolution and
// {{expr}} expansion happen later, against the variables of the run.
package parser
