// Copyright 2025 bibliotecavirtual. All rights reserved.
// Use of this source code is governed by an MIT-style license
// that can be found in the LICENSE file.

/*
Package biblioteca-sheets grants time-limited access to the virtual library by issuing signed, expiring
tokens tied to an email address, using a Google Sheets worksheet as the access ledger and email as the
notification channel.

biblioteca-sheets is intended to be run as an HTTP service but the ledger operations are also available
from the command line for administrators.

biblioteca-sheets supports the following commands:

  - run, to start the HTTP service
  - authorise, to authorise application access to the Google Sheets worksheet
  - get, to download the ledger worksheet as a TSV file
  - put, to store a TSV file to the ledger worksheet
  - issue, to issue (or re-issue) an access token for an email address
  - validate, to check whether an access token is currently valid
  - mark-used, to consume an access token
*/
package sheets
