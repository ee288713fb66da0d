package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

// JUnit XML structures

// JUnitTestSuites is the root element
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr,omitempty"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Time       float64          `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite groups the invocations of one declaration file
type JUnitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Time      float64         `xml:"time,attr"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase is a single invocation
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
}

// JUnitFailure is an invocation answered with a 4xx or 5xx status
type JUnitFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitError is an invocation that produced no result
type JUnitError struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitFormatter formats invocation results as JUnit XML for CI systems
type JUnitFormatter struct {
	writer io.Writer
	suites []JUnitTestSuite
	index  map[string]int
}

func newJUnitFormatter(w io.Writer) *JUnitFormatter {
	return &JUnitFormatter{
		writer: w,
		index:  make(map[string]int),
	}
}

func (f *JUnitFormatter) suite(name string) *JUnitTestSuite {
	i, ok := f.index[name]
	if !ok {
		i = len(f.suites)
		f.index[name] = i
		f.suites = append(f.suites, JUnitTestSuite{Name: name})
	}
	return &f.suites[i]
}

func (f *JUnitFormatter) FormatResult(r *Result) {
	suite := f.suite(r.Name)

	tc := JUnitTestCase{
		Name:      fmt.Sprintf("%s %s", r.Verb, r.URL),
		ClassName: r.Name,
		Time:      r.Duration.Seconds(),
	}

	switch {
	case r.Status() == 0:
		suite.Errors++
		tc.Error = &JUnitError{
			Message: r.Failure(),
			Type:    "InvocationError",
		}
	case !r.Passed():
		suite.Failures++
		tc.Failure = &JUnitFailure{
			Message: r.Failure(),
			Type:    "StatusError",
			Content: fmt.Sprintf("%s %s returned %d", r.Verb, r.URL, r.Status()),
		}
	}

	suite.Tests++
	suite.Time += tc.Time
	suite.TestCases = append(suite.TestCases, tc)
}

// Errors are reported per test case.
func (f *JUnitFormatter) FormatError(err error) {}

func (f *JUnitFormatter) FormatHeader(version string) {}

// Flush writes the accumulated JUnit XML output
func (f *JUnitFormatter) Flush(totalDuration time.Duration) error {
	suites := JUnitTestSuites{
		Name:       "hitlambda",
		Time:       totalDuration.Seconds(),
		Timestamp:  time.Now().Format(time.RFC3339),
		TestSuites: f.suites,
	}
	for _, s := range f.suites {
		suites.Tests += s.Tests
		suites.Failures += s.Failures
		suites.Errors += s.Errors
	}

	fmt.Fprint(f.writer, xml.Header)
	encoder := xml.NewEncoder(f.writer)
	encoder.Indent("", "  ")
	if err := encoder.Encode(suites); err != nil {
		return err
	}
	_, err := fmt.Fprintln(f.writer)
	return err
}
