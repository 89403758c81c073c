// Package nodex bootstraps and runs a message-bus node.
//
// # Overview
//
// A node is identified by its endpoint name. Bootstrap performs a fixed
// sequence and stops at the first failure:
//
//  1. locate provider assemblies in the discovery directory
//  2. register every "...Provider" type as a Transient service per interface
//  3. invoke the registrars of the assemblies, once each
//  4. compose tracing under the endpoint name and attach it
//  5. create the endpoint configuration and apply the configure hooks
//
// Run wraps Bootstrap with configuration loading, logging, metrics, the
// container build and the process runtime.
//
// # Usage
//
//	func main() {
//		err := nodex.Run(context.Background(),
//			nodex.WithEndpointName("Divergent.ITOps"),
//			nodex.WithConfigFile("itops.yaml"),
//		)
//		if err != nil {
//			os.Exit(1)
//		}
//	}
package nodex
